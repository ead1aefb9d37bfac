// Package agent provides the HTTP and WebSocket server the playback host
// connects to.
//
// The host page (the TV web player) opens a WebSocket to /api/v1/ws and
// streams its navigation, visibility, player and media element events.
// The agent turns those into the collaborator interfaces the rest of the
// bridge consumes:
//
//   - playback.Source (player handle, media element, metadata, navigation)
//   - session.NavigationSource
//   - bridge.Notifier
//
// and relays playback actions back to the host as "command" messages.
//
// Only one host is active at a time. A new connection replaces the
// previous one. When a secret is configured the host must present a token
// issued by IssueHostToken.
//
// The server follows the usual lifecycle:
//
//	srv, err := agent.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package agent
