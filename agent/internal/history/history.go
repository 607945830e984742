package history

import (
	"fmt"
	"strings"

	"github.com/tempslope/tempslope/pkg/temp"
)

const (
	// Length is the number of change events kept.
	Length = 4

	// IgnoredBits is the number of low-order bits of a temp.Temp discarded
	// (with rounding) before two samples are compared.
	IgnoredBits = 4

	// MinDiff is the smallest input change, in raw temp.Temp units, that can
	// register as an event.
	MinDiff = 1 << IgnoredBits

	// MaxSeconds bounds how far back Slope looks. It only influences the
	// result when nothing has changed for a while, i.e. the slope is near zero.
	MaxSeconds = 3600

	secondsPerHour = 3600
)

// Entry is one recorded change event: the quantized difference to the
// previously recorded value and the time at which it was observed.
type Entry struct {
	Time int64 // seconds since the caller's epoch
	Diff int32 // in quantized units (multiples of MinDiff)
}

// History is a fixed-capacity, newest-first record of quantized changes in a
// periodically sampled value. Slot 0 is always the most recent event; a new
// event discards the oldest.
//
// History is not safe for concurrent use. It has a single owner that calls
// Add once per tick and reads Slope, Sum or LastValue in between.
type History struct {
	times     [Length]int64
	diffs     [Length]int32
	lastValue temp.Temp // quantized, or temp.Invalid before the first valid sample
}

// New returns a History with every slot at its sentinel: time -MaxSeconds so
// the slot never falls inside the window, and a zero diff so it contributes
// nothing to sums.
func New() *History {
	h := &History{lastValue: temp.Invalid}
	for i := range h.times {
		h.times[i] = -MaxSeconds
	}
	return h
}

// Add records v observed at now (seconds, non-decreasing across calls).
//
// Invalid samples are ignored. A sample that quantizes to the same value as
// the last recorded one is ignored too, so noise below MinDiff never creates
// an event. The first valid sample is recorded with a zero diff.
func (h *History) Add(v temp.Temp, now int64) {
	if v == temp.Invalid {
		return
	}
	q := quantize(v)
	if q == h.lastValue {
		return
	}

	for i := Length - 1; i > 0; i-- {
		h.times[i] = h.times[i-1]
		h.diffs[i] = h.diffs[i-1]
	}
	if h.lastValue == temp.Invalid {
		h.diffs[0] = 0
	} else {
		h.diffs[0] = int32(q - h.lastValue)
	}
	h.times[0] = now
	h.lastValue = q
}

// Slope returns the rate of change per hour at now, in full-precision
// temp.Temp units.
//
// Diffs are summed newest to oldest while their event time lies within
// MaxSeconds of now; the divisor is the age of the oldest included event, or
// MaxSeconds once an event falls outside the window. When every slot is in
// the window and the newest event is more recent than the spacing between
// the two oldest ones, the divisor is stretched as if the next event were
// due at that spacing, so the slope does not jump right after a new event.
//
// current is accepted for symmetry with Add and is not used: the result
// derives entirely from the recorded diffs.
func (h *History) Slope(current temp.Temp, now int64) temp.Temp {
	var total, denom int64
	clamped := false
	for i := 0; i < Length; i++ {
		age := now - h.times[i]
		if age > MaxSeconds {
			denom = MaxSeconds
			clamped = true
			break
		}
		total += int64(h.diffs[i])
		denom = age
	}

	if !clamped {
		spacing := h.times[Length-2] - h.times[Length-1]
		if sinceLast := now - h.times[0]; sinceLast < spacing {
			denom += spacing - sinceLast
		}
	}
	if denom < 1 {
		denom = 1
	}

	return temp.Saturate(divRound((total<<IgnoredBits)*secondsPerHour, denom))
}

// Sum returns the total of all stored diffs in full-precision units.
func (h *History) Sum() temp.Temp {
	var total int64
	for _, d := range h.diffs {
		total += int64(d)
	}
	return temp.Saturate(total << IgnoredBits)
}

// LastValue returns the last recorded quantized value in full-precision
// units, or temp.Invalid if no valid sample was ever added.
func (h *History) LastValue() temp.Temp {
	if h.lastValue == temp.Invalid {
		return temp.Invalid
	}
	return temp.Saturate(int64(h.lastValue) << IgnoredBits)
}

// Entries returns a copy of all slots, newest first, sentinels included.
func (h *History) Entries() []Entry {
	out := make([]Entry, Length)
	for i := range out {
		out[i] = Entry{Time: h.times[i], Diff: h.diffs[i]}
	}
	return out
}

func (h *History) String() string {
	var b strings.Builder
	b.WriteString("diff\ttimestamp\n")
	for i := 0; i < Length; i++ {
		fmt.Fprintf(&b, "%d\t%d\n", h.diffs[i], h.times[i])
	}
	fmt.Fprintf(&b, "lastValue: %s\n", h.LastValue())
	return b.String()
}

// quantize rounds v to the nearest multiple of MinDiff and drops the
// ignored bits. Computed in 64 bits so values near temp.Max do not wrap.
func quantize(v temp.Temp) temp.Temp {
	return temp.Temp((int64(v) + MinDiff/2) >> IgnoredBits)
}

// divRound divides rounding half away from zero. den must be positive.
func divRound(num, den int64) int64 {
	if num >= 0 {
		return (num + den/2) / den
	}
	return (num - den/2) / den
}
