// Package config handles configuration loading for ally-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path ends
// in .toml, with environment variable expansion, defaults and validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ALLY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/ally/gateway.yaml
//  3. ~/.config/ally/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	google:
//	  state_secret: "${ALLY_STATE_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax and must be positive:
//
//	session:
//	  ttl: "720h"
//	  inactivity_timeout: "24h"
//	  stale_after: "60s"
//	  busy_timeout: "5m"
//
// # Configuration Sections
//
// Server and optional tailnet listener:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  public_url: "https://ally.example.com"
//	tailscale:
//	  enabled: false
//	  hostname: "ally"
//	  funnel: true
//
// Session backend. An empty addr selects the in-memory store:
//
//	redis:
//	  addr: "localhost:6379"
//
// Identity store:
//
//	database:
//	  path: "/var/lib/ally/gateway.db"
//
// Rate limits:
//
//	rate_limits:
//	  auth:    { max_attempts: 5,  window: "15m" }
//	  message: { max_attempts: 30, window: "60s" }
//
// Passcodes. Without smtp.host codes are written to the log:
//
//	otp:
//	  ttl: "10m"
//	  from: "ally@example.com"
//	  smtp: { host: "smtp.example.com", port: 587 }
//
// Google Calendar access:
//
//	google:
//	  client_id: "${GOOGLE_CLIENT_ID}"
//	  client_secret: "${GOOGLE_CLIENT_SECRET}"
//	  state_secret: "${ALLY_STATE_SECRET}"   # at least 32 bytes
//
// Matrix transport and agent backend:
//
//	matrix:
//	  homeserver: "https://matrix.example.org"
//	  user_id: "@ally:example.org"
//	  access_token: "${MATRIX_TOKEN}"
//	  encryption: true
//	agent:
//	  url: "http://localhost:9000"
//	  timeout: "2m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
