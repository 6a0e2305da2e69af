package livestock

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// FormatDuration renders seconds as "Hh Mm Ss", truncating fractions.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// Report maps animal -> state -> formatted duration.
type Report map[AnimalID]map[State]string

// BuildReport formats every entry of snap. It does not modify snap.
func BuildReport(snap Snapshot) Report {
	out := make(Report, len(snap))
	for id, states := range snap {
		row := make(map[State]string, len(states))
		for state, acc := range states {
			row[state] = FormatDuration(acc.TotalSeconds)
		}
		out[id] = row
	}
	return out
}

// SortedAnimalIDs returns the animals of snap in a stable order: numeric IDs
// numerically first, then the rest lexically.
func SortedAnimalIDs(snap Snapshot) []AnimalID {
	ids := make([]AnimalID, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	SortAnimalIDs(ids)
	return ids
}

// SortAnimalIDs sorts ids in place using the SortedAnimalIDs ordering.
func SortAnimalIDs(ids []AnimalID) {
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := parseInt(string(ids[i]))
		b, bErr := parseInt(string(ids[j]))
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
