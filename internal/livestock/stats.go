package livestock

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MovementStats summarises the displacements in an animal's history, in
// centimetres. The first record of a history always has zero displacement
// and is included.
type MovementStats struct {
	Records       int           `json:"records"`
	StateCounts   map[State]int `json:"state_counts"`
	TotalCm       float64       `json:"total_cm"`
	MeanCm        float64       `json:"mean_cm"`
	StdDevCm      float64       `json:"stddev_cm"`
	MedianCm      float64       `json:"median_cm"`
	P95Cm         float64       `json:"p95_cm"`
	MaxCm         float64       `json:"max_cm"`
	FirstSeenUnix float64       `json:"first_seen_unix"`
	LastSeenUnix  float64       `json:"last_seen_unix"`
}

// SummariseMovement computes MovementStats over records.
func SummariseMovement(records []*StoredRecord) MovementStats {
	ms := MovementStats{StateCounts: make(map[State]int, len(States))}
	if len(records) == 0 {
		return ms
	}

	cm := make([]float64, len(records))
	ms.FirstSeenUnix = records[0].Timestamp
	ms.LastSeenUnix = records[0].Timestamp
	for i, r := range records {
		cm[i] = r.DisplacementCm
		ms.StateCounts[r.State]++
		if r.Timestamp < ms.FirstSeenUnix {
			ms.FirstSeenUnix = r.Timestamp
		}
		if r.Timestamp > ms.LastSeenUnix {
			ms.LastSeenUnix = r.Timestamp
		}
	}

	ms.Records = len(cm)
	ms.TotalCm = floats.Sum(cm)
	ms.MaxCm = floats.Max(cm)
	ms.MeanCm = stat.Mean(cm, nil)
	if len(cm) > 1 {
		ms.StdDevCm = stat.StdDev(cm, nil)
	}

	sort.Float64s(cm)
	ms.MedianCm = stat.Quantile(0.5, stat.Empirical, cm, nil)
	ms.P95Cm = stat.Quantile(0.95, stat.Empirical, cm, nil)
	return ms
}
