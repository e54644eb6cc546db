package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// WeightValue is a weight in kilograms as delivered by the backend. The
// backend and cached snapshots carry it as a number, a numeric string, a
// free-form string or null, so the raw text is kept next to the parsed value.
type WeightValue struct {
	raw   string
	value float64
	valid bool
}

// NewWeight returns a valid weight.
func NewWeight(v float64) WeightValue {
	return WeightValue{raw: FormatWeight(v), value: v, valid: true}
}

// ParseWeight parses s as a finite float. Unparseable input is kept as raw
// text and reported invalid by Float.
func ParseWeight(s string) WeightValue {
	trimmed := strings.TrimSpace(s)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return WeightValue{raw: s}
	}
	return WeightValue{raw: trimmed, value: v, valid: true}
}

// Float returns the numeric weight and whether it is usable.
func (w WeightValue) Float() (float64, bool) {
	return w.value, w.valid
}

// IsZero reports whether no weight was received at all.
func (w WeightValue) IsZero() bool {
	return !w.valid && w.raw == ""
}

// String renders the weight the way it was received.
func (w WeightValue) String() string {
	if w.valid {
		return FormatWeight(w.value)
	}
	return w.raw
}

// UnmarshalJSON accepts numbers, strings and null.
func (w *WeightValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*w = WeightValue{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = ParseWeight(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			// booleans, objects, arrays: keep the text, never a number
			*w = WeightValue{raw: string(data)}
			return nil
		}
		*w = ParseWeight(n.String())
	}
	return nil
}

// MarshalJSON writes valid weights as numbers, invalid ones as their raw
// string and absent ones as null.
func (w WeightValue) MarshalJSON() ([]byte, error) {
	if w.valid {
		return []byte(FormatWeight(w.value)), nil
	}
	if w.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(w.raw)
}

// FormatWeight prints the shortest decimal representation of v.
func FormatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
