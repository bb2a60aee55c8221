// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package services adapts relay components to suture's Serve(ctx) error
contract.

HTTPServerService wraps the ListenAndServe/Shutdown pair of *http.Server.
ConfigWatchService turns file change notifications into snapshot reloads.

Return values drive restarts:

	nil         -> stopped cleanly, not restarted
	error       -> crashed, restarted with backoff
	ctx.Err()   -> shutdown requested

Every service implements fmt.Stringer so supervisor events name it.
*/
package services
