package temp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FractionBits is the number of fractional bits in a Temp.
const FractionBits = 9

// Scale is the number of raw units per whole degree.
const Scale = 1 << FractionBits

// Temp is a signed fixed-point temperature (or temperature difference) with
// FractionBits fractional bits.
type Temp int32

const (
	// Invalid marks the absence of a valid reading. Conversions from real
	// values never produce it.
	Invalid Temp = math.MinInt32

	// Min and Max bound every valid Temp.
	Min Temp = math.MinInt32 + 1
	Max Temp = math.MaxInt32
)

// FromInt converts whole degrees.
func FromInt(deg int) Temp {
	return Saturate(int64(deg) * Scale)
}

// FromFloat converts degrees, rounding to the nearest raw unit.
// NaN converts to Invalid.
func FromFloat(deg float64) Temp {
	if math.IsNaN(deg) {
		return Invalid
	}
	raw := math.Round(deg * Scale)
	switch {
	case raw >= float64(Max):
		return Max
	case raw <= float64(Min):
		return Min
	}
	return Temp(raw)
}

// FromMilli converts thousandths of a degree, the unit used by Linux hwmon
// and w1 sysfs files.
func FromMilli(milli int64) Temp {
	return FromFloat(float64(milli) / 1000)
}

// Parse reads a decimal degree string such as "21.375".
func Parse(s string) (Temp, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Invalid, fmt.Errorf("temp: parse %q: %w", s, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Invalid, fmt.Errorf("temp: parse %q: not a finite number", s)
	}
	return FromFloat(f), nil
}

// Saturate clamps a raw 64-bit value into the valid Temp range.
func Saturate(raw int64) Temp {
	switch {
	case raw > int64(Max):
		return Max
	case raw < int64(Min):
		return Min
	}
	return Temp(raw)
}

// Valid reports whether t is a real value.
func (t Temp) Valid() bool { return t != Invalid }

// Float returns t in degrees. Invalid returns NaN.
func (t Temp) Float() float64 {
	if t == Invalid {
		return math.NaN()
	}
	return float64(t) / Scale
}

func (t Temp) String() string {
	if t == Invalid {
		return "invalid"
	}
	return strconv.FormatFloat(t.Float(), 'f', 3, 64)
}
