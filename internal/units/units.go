// Package units provides shared constants and validation for length units
// and timezones used when presenting stored records.
package units

import "math"

// Unit constants
const (
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, M, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, m, in"
}

// ConvertLength converts a length from centimetres to the target units.
// Records store displacement in centimetres.
func ConvertLength(cm float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return cm / 100
	case IN:
		return cm / 2.54
	default:
		return cm
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
