// Package session coordinates the lifetime of playback sessions.
//
// The Coordinator follows host navigation through a two-state machine:
//
//	NoSession --enter /watch?v=A--> HasSession(A)
//	HasSession(A) --leave playable view--> NoSession   (publishes idle)
//	HasSession(A) --/watch?v=B--> HasSession(B)        (A destroyed before B attaches)
//
// It maps observer snapshots into the hub's media state vocabulary,
// publishes them through the connection manager, and forwards decoded
// commands to the active observer. Commands that arrive while no session
// is active are dropped, never queued.
//
// Every state transition happens on the single goroutine running Run.
package session
