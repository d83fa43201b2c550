// Package server provides HTTP routing, middleware, and the JSON API for scheduling and dispatching videos.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # API
//
// [API] registers the routes:
//
//	GET  /                   upload form (optional)
//	GET  /healthz            liveness
//	GET  /api/auth/url       consent URL for the one-time OAuth bootstrap
//	GET  /api/auth/callback  code exchange; returns the refresh token to store
//	POST /api/schedule       multipart video submission
//	GET  /api/cron/upload    daily dispatch, Bearer CRON_SECRET
//	POST /api/trigger        manual dispatch, JSON {"secret": ...}
//
// Error bodies are always {"error": "..."}; [StatusFor] maps sentinel errors to status codes.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the callback for the CLI login flow. It validates the state parameter,
// exchanges the authorization code for tokens, and sends the result through a channel.
// It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
