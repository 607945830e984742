// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort: port for ingest, the REST API and the WebSocket hub (default 8080)
//   - LogLevel: debug | info | warn | error (default info)
//   - Auth.Mode: "apikey" or "none"
//   - Auth.KeyEnv: environment variable holding the expected API key
//   - Auth.Header: HTTP header name (default "x-api-key")
//   - Snapshot.TTL: how long a sensor snapshot remains live (default 5m)
//   - Alerts: rules (name, condition, severity, cooldown, sensors) and webhooks
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
