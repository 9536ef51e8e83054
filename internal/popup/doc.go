// Package popup reconciles the player state of every open music tab into one consistent set of records.
//
// # Components
//
//   - [Store] : tab id to [models.TabRecord], never shrinking during a session, with change listeners
//   - [Reconcile] : merges a partial state report into the store, creating records on first sight
//   - [Aggregation] : counts per-tab replies against the enumerated total
//   - [Invalidator] : owns the default-tab flag after each default_tab_changed broadcast
//   - [View] : filtered, sorted projection recomputed on every store change
//
// # Session
//
// A [Session] wires the components to a [services.ControlPlane] and a [services.Peer].
// [Session.Open] enumerates tabs and queries each one concurrently. Each reply is reconciled and
// counted under the store lock, so a [Snapshot] never shows a record without its count.
// Push notifications are reconciled without counting.
//
// Irregularities never stop a session. They are logged and handed to every [AnomalyRecorder].
//
// # Pending defaults
//
// A broadcast may name a tab whose record does not exist yet. With [PolicyRetroactive] the id is
// remembered and the record is marked default when it is created; with [PolicyDrop] it is discarded.
package popup
