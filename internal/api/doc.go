// Package api implements the operator HTTP API and the live timeline
// WebSocket feed for Overlay Core.
//
// This package provides:
//   - REST endpoints for events, the running order and operator commands
//   - WebSocket hub broadcasting every committed transition to browser sources
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Commands go through director.Director, which moves the timeline, updates
// OBS and publishes the outcome. The Hub is one of the director's
// publishers, so HTTP, MQTT and CLI commands all reach WebSocket clients.
//
// # Security
//
// Every route except health and login needs a bearer token. Role
// permissions gate reads, run commands, event edits and operator
// management. WebSocket connections use single-use tickets so tokens stay
// out of URLs.
//
// # Graceful Degradation
//
// OBS is optional: without it the screenshot and scene list endpoints
// answer 503 and commands still move the timeline.
package api
