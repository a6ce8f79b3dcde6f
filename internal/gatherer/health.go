package gatherer

import (
	"sync"
	"time"

	"dossier/internal/types"
)

// healthTable tracks per-endpoint reliability in memory. It feeds the
// source-trust component of scoring and degrades on bad_source feedback.
type healthTable struct {
	mu      sync.Mutex
	records map[string]*types.HealthRecord
}

func newHealthTable() *healthTable {
	return &healthTable{records: map[string]*types.HealthRecord{}}
}

// Observe records one fetch outcome. Three consecutive failures mark a
// source failing; six mark it dead. A success resets the streak.
func (h *healthTable) Observe(sourceName string, ok bool, latency time.Duration, items int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.records[sourceName]
	if rec == nil {
		rec = &types.HealthRecord{SourceName: sourceName, Health: types.HealthUnknown}
		h.records[sourceName] = rec
	}

	if rec.AvgResponseTime == 0 {
		rec.AvgResponseTime = latency
	} else {
		rec.AvgResponseTime = (rec.AvgResponseTime + latency) / 2
	}

	if ok {
		rec.LastSuccess = time.Now()
		rec.FailureCount = 0
		rec.ItemsCollected += items
		rec.Health = types.HealthHealthy
		return
	}

	rec.LastFailure = time.Now()
	rec.FailureCount++
	switch {
	case rec.FailureCount >= 6:
		rec.Health = types.HealthDead
	case rec.FailureCount >= 3:
		rec.Health = types.HealthFailing
	default:
		rec.Health = types.HealthDegraded
	}
}

// Degrade forces a source one step down, used on bad_source feedback.
func (h *healthTable) Degrade(sourceName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.records[sourceName]
	if rec == nil {
		rec = &types.HealthRecord{SourceName: sourceName}
		h.records[sourceName] = rec
	}
	switch rec.Health {
	case types.HealthHealthy, types.HealthUnknown, "":
		rec.Health = types.HealthDegraded
	case types.HealthDegraded:
		rec.Health = types.HealthFailing
	default:
		rec.Health = types.HealthDead
	}
}

// Trust maps health to the source-trust scoring component.
func (h *healthTable) Trust(sourceName string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := h.records[sourceName]
	if rec == nil {
		return 0.5
	}
	switch rec.Health {
	case types.HealthHealthy:
		return 0.9
	case types.HealthDegraded:
		return 0.6
	case types.HealthFailing, types.HealthDead:
		return 0.3
	default:
		return 0.5
	}
}

// Snapshot returns a copy of all records.
func (h *healthTable) Snapshot() []types.HealthRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.HealthRecord, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, *rec)
	}
	return out
}
