package livestock

// Advance folds one in-state observation at ts into the running total.
//
// A nil prev starts the clock at ts with zero seconds. Otherwise the time
// since prev.LastTimestamp is added when ts is later; a timestamp at or
// before the stored clock adds nothing and leaves the clock where it was, so
// TotalSeconds never decreases. The second return reports such a regression.
//
// Only the clock of the observed state moves. Time spent in another state
// between two observations of this state is still counted here, because each
// state keeps its own LastTimestamp.
func Advance(prev *AccumulatedTime, ts float64) (AccumulatedTime, bool) {
	if prev == nil {
		return AccumulatedTime{LastTimestamp: ts}, false
	}
	if ts > prev.LastTimestamp {
		return AccumulatedTime{
			LastTimestamp: ts,
			TotalSeconds:  prev.TotalSeconds + (ts - prev.LastTimestamp),
		}, false
	}
	return *prev, true
}

// Accumulate applies Advance to the (id, state) entry of snap in place and
// returns the updated total.
func Accumulate(snap Snapshot, id AnimalID, state State, ts float64) float64 {
	var prev *AccumulatedTime
	if acc, ok := snap.Get(id, state); ok {
		prev = &acc
	}
	next, _ := Advance(prev, ts)
	snap.Set(id, state, next)
	return next.TotalSeconds
}
