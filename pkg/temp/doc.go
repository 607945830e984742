// Package temp defines the fixed-point temperature representation shared by
// the agent and the server: a 32-bit scaled integer with 9 fractional bits
// and a reserved Invalid sentinel.
package temp
