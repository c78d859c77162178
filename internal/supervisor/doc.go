// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package supervisor runs the long-lived services of Tracklog under a suture
v4 supervision tree.

# Overview

	RootSupervisor ("tracklog")
	├── StorageSupervisor ("storage-layer")
	│   ├── EmbeddedNATSService (nats dispatcher with embedded server)
	│   └── applog.RetentionScheduler
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── DispatcherService (channel, watermill, nats or spool)
	│   └── HubService (live tail)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with suture's backoff. Because the layers
are separate supervisors, a dispatcher that keeps failing to subscribe does
not take the HTTP server down with it: requests keep being served and their
records fall back to the side channel.

Supervisor events (start, failure, backoff, restart) are written through
sutureslog to a slog.Logger. The server passes logging.NewSlogLogger so the
events land in the same zerolog stream as everything else.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewDispatcherService(dispatcher))
	tree.AddPipelineService(services.NewHubService(hub))
	tree.AddStorageService(retentionScheduler)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Shutdown

Canceling the context stops every layer. Each service gets ShutdownTimeout
to return; UnstoppedServiceReport names the ones that did not.

# See Also

  - internal/supervisor/services: adapters from component lifecycles to
    suture.Service
  - github.com/thejerf/suture/v4
*/
package supervisor
