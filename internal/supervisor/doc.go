// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package supervisor runs the relay's long-lived services under suture v4.

	RootSupervisor ("embynotify")
	├── ConfigSupervisor ("config-layer")
	│   └── ConfigWatchService (if watch: true)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog, which writes to the zerolog logger via
logging.NewSlogLogger.

Shutdown starts when the context passed to Serve is canceled. Each service
gets TreeConfig.ShutdownTimeout to stop; the HTTP server drains in-flight
webhooks within that window.
*/
package supervisor
