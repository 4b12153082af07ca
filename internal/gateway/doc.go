// Package gateway wires and runs the ally-gateway server.
//
// # Overview
//
// The Gateway owns every long-lived component: the identity database, the
// key-value backend for sessions, rate limits and passcodes, the update
// pipeline and the Matrix transport that feeds it, and a small HTTP server.
//
// # Pipeline
//
// New assembles the pipeline in its fixed order:
//
//	duplicate -> expiry -> auth_rate_limit -> identity -> credential -> message_rate_limit -> handler
//
// The stale filter and session load run before the first stage. The handler
// relays confirmed turns to the assistant backend.
//
// # HTTP Endpoints
//
//   - GET /health - Liveness check
//   - GET /health/ready - Pings the kv backend and the database
//   - GET /oauth/google/callback - Completes calendar consent and notifies the chat
//
// # Listeners
//
// By default the HTTP server binds server.http_addr. With tailscale.enabled
// it joins the tailnet through tsnet and serves HTTPS on :443, or through
// Funnel when tailscale.funnel is set so the OAuth redirect is public.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run cancels the transport, then Shutdown stops the HTTP server, the tsnet
// node and closes both stores.
package gateway
