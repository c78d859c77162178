// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package websocket streams persisted log records to admin clients.

The Hub implements applog.RecordListener. Wrapping the log store with
applog.NewNotifyingStore(store, hub) makes every successful insert reach
the hub, which fans it out to each connected client whose filter matches.

	hub := websocket.NewHub()
	store = applog.NewNotifyingStore(store, hub)
	go hub.RunWithContext(ctx) // or supervised via internal/supervisor

	r.Get("/api/v1/admin/logs/stream", websocket.ServeWS(hub, origins))

Message Types:

  - log: one persisted record, Data is the applog.Record
  - ping / pong: application-level keepalive initiated by the client

Clients choose what they receive with query parameters on the upgrade
request: type and level take comma-separated lists, for example
?type=error,http_error&level=error.

Delivery:

Delivery is best-effort. A full broadcast queue drops the record with a
warning, and a client that cannot keep up is disconnected rather than
slowing the hub. Ordering follows insert order on a single instance.

Thread Safety:

The client set is owned by the Run goroutine and guarded by a RWMutex for
readers such as GetClientCount. Clients own their connection: one goroutine
reads, one writes.
*/
package websocket
