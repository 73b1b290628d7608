package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CoordinatePolicy decides what happens to latitude/longitude input that is
// not a usable number.
type CoordinatePolicy int

const (
	// CoordinatesPermissive stores unparseable input as null.
	CoordinatesPermissive CoordinatePolicy = iota
	// CoordinatesStrict rejects unparseable or out-of-range input.
	CoordinatesStrict
)

// parseCoordinate converts raw form input into a coordinate. The tag is the
// validator tag ("latitude" or "longitude") applied in strict mode. A nil
// value means "store null"; ok is false only when strict mode rejects raw.
func parseCoordinate(v *validator.Validate, policy CoordinatePolicy, raw, tag string) (*float64, bool) {
	raw = strings.TrimSpace(raw)

	value, err := strconv.ParseFloat(raw, 64)
	usable := err == nil && !math.IsNaN(value) && !math.IsInf(value, 0)

	if policy == CoordinatesStrict {
		if !usable || v.Var(raw, tag) != nil {
			return nil, false
		}
	}

	if !usable {
		return nil, true
	}
	return &value, true
}
