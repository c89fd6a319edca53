// Package indicator provides the statistics primitives the strategies are
// built from: rolling moments, exponential averages, true range and the
// hedge ratio of two series.
package indicator

// Series is an indicator output aligned to the bars it was computed from.
// Values[k] belongs to bar Offset+k; bars before Offset are undefined.
type Series struct {
	Offset int
	Values []float64
}

// Len returns the number of defined values.
func (s Series) Len() int {
	return len(s.Values)
}

// Empty reports whether the series has no defined values.
func (s Series) Empty() bool {
	return len(s.Values) == 0
}

// Valid reports whether bar i has a value.
func (s Series) Valid(i int) bool {
	return i >= s.Offset && i-s.Offset < len(s.Values)
}

// At returns the value at bar i.
func (s Series) At(i int) (float64, bool) {
	if !s.Valid(i) {
		return 0, false
	}
	return s.Values[i-s.Offset], true
}

// End returns one past the last defined bar index.
func (s Series) End() int {
	return s.Offset + len(s.Values)
}

// fromFull trims a full-length talib output to its defined tail.
func fromFull(out []float64, offset int) Series {
	if offset >= len(out) {
		return Series{Offset: offset}
	}
	vals := make([]float64, len(out)-offset)
	copy(vals, out[offset:])
	return Series{Offset: offset, Values: vals}
}
