// Package playback observes one playing content item on the host.
//
// An Observer is bound to a single content id for its whole life. Attach
// hooks it to the host's player and media element, each on a best-effort
// basis, and starts polling for metadata. Every change produces a fresh
// immutable Snapshot for the session layer. Destroy detaches everything the
// observer registered; after it returns no callback of that observer acts.
//
// The host itself is reached through the Source interface, implemented by
// the playback agent.
package playback
