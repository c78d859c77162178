// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package services adapts Tracklog components to suture.Service.

Each wrapper translates a component lifecycle into the context-aware Serve
contract and names the service for supervisor logs:

	HTTPServerService    *http.Server, ListenAndServe plus graceful Shutdown
	HubService           *websocket.Hub, delegates to RunWithContext
	DispatcherService    applog dispatchers, Serve then Close on cancellation
	EmbeddedNATSService  *applog.EmbeddedNATS, health watch and Shutdown

Returning an error from Serve makes the supervisor restart the service
with backoff. Returning ctx.Err() after cancellation is a clean stop.
Wrapping suture.ErrDoNotRestart marks a service that cannot come back
from its current handle.

The wrappers depend on small interfaces rather than the concrete types so
the supervisor packages stay free of import cycles and can be tested with
fakes.
*/
package services
