// Package models defines the domain entities exchanged between the popup core and the music tab control plane.
//
// The package contains three categories of types:
//
// 1. Tab state
//   - [TabRecord] : the authoritative per-tab player state held by the popup store
//   - [StatePatch] : a partial state report; absent fields are nil, explicit nulls are tracked in Nulls
//   - [TabDescriptor] : enumeration metadata describing one music tab
//
// 2. Messages
//   - [Notification] : unsolicited pushes from the control plane (state updates, default tab changes)
//   - [Command] : named transport commands dispatched to a tab
//
// 3. Diagnostics
//   - [Anomaly] : a tolerated protocol irregularity, optionally persisted to the journal
package models
