// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package cache provides the TTL cache used for metadata lookups.

TMDB poster URLs and ip-api locations change rarely, so positive results
are kept for cache.ttl (24h by default) to save outbound calls and stay
under the ip-api free tier limit.

# Storage

Entries live in BadgerDB. With cache.dir unset badger runs in memory and
the cache is lost on restart; with a directory it survives restarts.
Expiry uses badger's per-entry TTL, so expired keys are invisible to Get
and reclaimed by badger's own compaction.

# Keys

	tmdb:poster:tv:<series name>:<year>   TMDB poster_path
	tmdb:poster:movie:<tmdb id>          TMDB poster_path
	geo:<lang>:<ip>                      formatted location

# Thread Safety

BadgerCache is safe for concurrent use. Close waits for in-flight reads
and writes.
*/
package cache
