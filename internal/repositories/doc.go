// Package repositories persists the anomaly journal in SQLite.
//
// Popup sessions never persist tab state. What survives a session is the list of protocol
// irregularities it tolerated, so they can be inspected after the popup is gone.
//
//   - [AnomalyRepository] : create, lookup, filtered listing, per-session summaries and pruning
//   - [Journal] : adapts the repository to the popup's anomaly recorder and the status server's lister
//
// Every row gets a sequence number from the anomalies_sequence table, incremented in the same
// transaction as the insert, which gives listings a stable arrival order.
package repositories
