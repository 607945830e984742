// Package history keeps a short rolling record of quantized changes in a
// sampled temperature and derives a per-hour slope from it.
//
// Only changes of at least MinDiff raw units (after rounding) are recorded,
// each as a (time, diff) pair. Slope divides the diffs that fall inside a
// MaxSeconds window by the time they span, which stays meaningful even when
// the sensor resolution is far coarser than the per-sample change.
//
// Time is always passed in explicitly, in whole seconds from an arbitrary
// epoch, so the package has no clock dependency and is fully deterministic.
package history
