// Package tasks runs multi-step popup operations with progress reporting.
//
// # Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.Collect] : open a popup session and wait for every tab to report
//     - Enumerates music tabs through the session's control plane
//     - Reports one progress update per counted reply
//     - Returns a consistent snapshot, complete or partial when the context ends first
//
//  2. [Engine.Dispatch] : send one player command to many tabs
//     - Bounded worker pool with a shared rate limiter
//     - Partial failures are collected per tab, never abort the batch
//
// # Progress Reporting
//
// Progress updates are sent with select/default, so a slow or absent reader never blocks an operation.
package tasks
