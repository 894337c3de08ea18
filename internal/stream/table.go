package stream

import (
	"sort"
	"time"

	"fleet-monitor/geofence/internal/domain"
)

type applyResult int

const (
	applyAccepted applyResult = iota
	applyRejectedFuture
	applyRejectedStale
	applyRejectedOld
)

// latestTable is the latest-position-per-vehicle aggregate. It is owned by
// the Client's read loop; nothing else mutates it. Consumers only ever see
// immutable snapshot copies.
type latestTable struct {
	entries         map[string]domain.VehiclePosition
	stalenessWindow time.Duration
}

func newLatestTable(stalenessWindow time.Duration) *latestTable {
	return &latestTable{
		entries:         make(map[string]domain.VehiclePosition),
		stalenessWindow: stalenessWindow,
	}
}

// apply admits a record under the freshness policy: timestamps in the
// future or older than the staleness window are rejected, and a record
// replaces the stored entry only when strictly newer. Out-of-order late
// arrivals are dropped silently.
func (t *latestTable) apply(p domain.VehiclePosition, now time.Time) applyResult {
	if p.Timestamp.After(now) {
		return applyRejectedFuture
	}
	if now.Sub(p.Timestamp) > t.stalenessWindow {
		return applyRejectedStale
	}
	if existing, ok := t.entries[p.VehicleID]; ok && !p.Timestamp.After(existing.Timestamp) {
		return applyRejectedOld
	}
	t.entries[p.VehicleID] = p
	return applyAccepted
}

// rebuild replaces the whole table from a bulk snapshot, keeping only the
// most recent valid record per vehicle. One pass over the batch; apply
// already resolves duplicates within it.
func (t *latestTable) rebuild(batch []domain.VehiclePosition, now time.Time) int {
	t.entries = make(map[string]domain.VehiclePosition, len(batch))
	accepted := 0
	for _, p := range batch {
		if t.apply(p, now) == applyAccepted {
			accepted++
		}
	}
	return accepted
}

// snapshot returns an immutable array view of the table, sorted by vehicle
// id so downstream iteration order is stable.
func (t *latestTable) snapshot() []domain.VehiclePosition {
	out := make([]domain.VehiclePosition, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (t *latestTable) size() int {
	return len(t.entries)
}
