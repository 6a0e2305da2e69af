package pipeline

import (
	"context"
	"sync"

	"github.com/banshee-data/barn.report/internal/livestock"
)

type memHistory struct {
	mu        sync.Mutex
	records   map[livestock.AnimalID][]livestock.StoredRecord
	loadErr   error
	appendErr error

	inFlight    map[livestock.AnimalID]int
	maxInFlight int
}

func newMemHistory() *memHistory {
	return &memHistory{
		records:  make(map[livestock.AnimalID][]livestock.StoredRecord),
		inFlight: make(map[livestock.AnimalID]int),
	}
}

func (h *memHistory) LastRecord(_ context.Context, id livestock.AnimalID) (*livestock.StoredRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inFlight[id]++
	if h.inFlight[id] > h.maxInFlight {
		h.maxInFlight = h.inFlight[id]
	}
	if h.loadErr != nil {
		h.inFlight[id]--
		return nil, h.loadErr
	}
	recs := h.records[id]
	if len(recs) == 0 {
		return nil, nil
	}
	last := recs[len(recs)-1]
	return &last, nil
}

func (h *memHistory) AppendRecord(_ context.Context, rec *livestock.StoredRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inFlight[rec.AnimalID]--
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records[rec.AnimalID] = append(h.records[rec.AnimalID], *rec)
	return nil
}

func (h *memHistory) count(id livestock.AnimalID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records[id])
}

type memAccumulators struct {
	mu        sync.Mutex
	snap      livestock.Snapshot
	updateErr error
}

func newMemAccumulators() *memAccumulators {
	return &memAccumulators{snap: livestock.Snapshot{}}
}

func (a *memAccumulators) UpdateAccumulator(_ context.Context, id livestock.AnimalID, state livestock.State, ts float64) (livestock.AccumulatedTime, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.updateErr != nil {
		return livestock.AccumulatedTime{}, false, a.updateErr
	}
	var prev *livestock.AccumulatedTime
	if acc, ok := a.snap.Get(id, state); ok {
		prev = &acc
	}
	next, regressed := livestock.Advance(prev, ts)
	a.snap.Set(id, state, next)
	return next, regressed, nil
}

func (a *memAccumulators) LoadSnapshot(context.Context) (livestock.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := livestock.Snapshot{}
	for id, states := range a.snap {
		for state, acc := range states {
			out.Set(id, state, acc)
		}
	}
	return out, nil
}

func (a *memAccumulators) SaveSnapshot(_ context.Context, snap livestock.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = snap
	return nil
}
