// Package server exposes a running popup session over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] uses [http.ServeMux] internally with method filtering.
// [DefaultMiddleware] installs chi's request id and panic recovery around [RequestLogger].
//
// # Status Handler
//
// [StatusHandler] implements [Handler] and serves:
//
//	GET  /healthz                   liveness and completion flag
//	GET  /api/snapshot              records, counters and hasDefault read together
//	GET  /api/tabs?format=          derived view as json, csv, markdown or text
//	GET  /api/events                server-sent snapshot after every store change
//	GET  /api/anomalies             journal entries (?session=, ?kind=, ?limit=)
//	POST /api/tabs/{id}/command     {"command": "playPause"}
//	POST /api/tabs/{id}/default     {"set": true}
//	POST /api/tabs/{id}/toggle
//	POST /api/tabs/{id}/open
//
// Command endpoints answer 202: delivery to the tab is fire-and-forget.
//
// # Lifecycle
//
// [Serve] listens until its context ends and then shuts down with a grace period.
package server
