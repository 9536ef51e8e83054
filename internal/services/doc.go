// Package services connects the popup core to the outside world.
//
// # Interfaces
//
// [ControlPlane] enumerates music tabs, tracks the default tab and forwards commands.
// [Peer] answers per-tab player state queries. [Transport] adds connection lifecycle.
//
// # Hub
//
// [Hub] implements [Transport] over a single websocket connection to the control plane.
// Every frame is a JSON [Envelope]. Requests carry a uuid correlation id and their reply
// echoes it, so concurrent per-tab queries resolve independently and in any order.
// Frames without an id are pushes and are delivered on [Hub.Notifications].
//
// Commands are fire-and-forget and pass through a token bucket limiter so that bulk
// dispatch cannot flood the control plane.
//
// # Status client
//
// [APIService] is an HTTP client for a running `tabx serve` instance. Error statuses are
// mapped back onto sentinel errors:
//   - 404 : [shared.ErrTabNotFound]
//   - 400 : [shared.ErrInvalidArgument]
//   - 503 : [shared.ErrServiceUnavailable]
//   - other : [shared.ErrRequestFailed]
package services
