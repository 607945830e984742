// Package types defines the JSON documents exchanged between the agent and
// the server. A Snapshot is the agent's view of one sensor after a sample
// cycle: the latest reading, its quantized value, the derived slope and the
// raw change history behind it.
//
// Temperatures travel as float degrees; the fixed-point representation is
// an implementation detail of the agent (see pkg/temp).
package types
