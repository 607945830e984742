// Package sensor provides a reader for each supported temperature source.
// Every reader returns a Reading with the value converted to a fixed-point
// temp.Temp, or temp.Invalid plus Err when the read failed.
//
// Implemented readers: Prometheus exposition endpoint (prometheus.go),
// 1-Wire DS18B20 via w1_therm (w1.go), plain value file such as sysfs hwmon
// (file.go). Factory: New(config.Sensor) returns the correct Reader.
//
// Authentication for the HTTP reader (mTLS, API key, bearer token, basic) is
// handled by the shared authRoundTripper in base.go.
package sensor
