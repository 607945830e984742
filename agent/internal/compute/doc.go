// Package compute derives temperature trends from raw sensor readings.
//
// trend.go provides the pure Classify(slope, Thresholds) function mapping a
// slope in °C/h to rising, falling or stable.
//
// engine.go provides the stateful Engine that keeps one history.History per
// sensor, feeds it on every read and reports the slope, history sum, last
// recorded value and a rolling uptime over the last 20 reads.
// Engine.Process accepts an injectable time.Time so tests are deterministic.
package compute
