// Package server provides HTTP routing, middleware, OAuth handling, and the
// browser session channel for the playlist generator.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow used
// by the CLI auth command. A temporary server on the configured redirect port
// validates the state parameter, exchanges the code for a token, sends the
// result through a channel, and is shut down by the caller.
//
// # Browser Sessions
//
// [SessionHandler] is the web surface of the generation pipeline. Clients
// POST typed JSON messages (authenticate, load_tracks, generate) to /api and
// receive progress and results on the /api/events SSE stream. Each handler
// owns one worker goroutine that processes inbound messages strictly in
// order, so pipeline operations for a session never run concurrently.
//
// [NoCacheStatic] serves the bundled web client with caching disabled so a
// redeployed client is picked up on the next page load.
package server
