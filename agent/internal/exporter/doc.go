// Package exporter exposes per-sensor temperature, slope and trend state as
// Prometheus metrics for local scraping at /metrics.
package exporter
