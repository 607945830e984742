// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, sample_interval, ship_interval,
//     buffer_size, log_level, sensors [], server_auth, trend, metrics, mqtt
//   - Sensor: id, type (prometheus|w1|file), endpoint, metric, labels, unit
//     (file only: milli|degrees), auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve from environment variables
//   - TrendConfig: rising_per_hour / falling_per_hour slope thresholds
//   - MQTTConfig: broker, topic_prefix, client_id, qos
//
// Load(path) reads the YAML file, applies defaults (30s sample, 15s ship,
// 1000 buffer, ±0.5 °C/h trend thresholds, :9464 metrics), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory so that
// the rename→create pattern of atomic-save editors (vim, VS Code) keeps
// triggering reloads.
package config
