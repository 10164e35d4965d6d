package timeline

import "time"

// HistoryTTL is how long undo/redo entries stay replayable.
const HistoryTTL = 24 * time.Hour

// HistoryEntry is one persisted undo or redo stack element.
type HistoryEntry struct {
	Action         Action    `json:"action"`
	IdempotencyKey string    `json:"idempotencyKey"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// PruneStale drops entries recorded before now-ttl. Stacks are ordered
// oldest first, so the stale ones form a prefix.
func PruneStale(entries []HistoryEntry, now time.Time, ttl time.Duration) []HistoryEntry {
	cutoff := now.Add(-ttl)
	i := 0
	for i < len(entries) && entries[i].RecordedAt.Before(cutoff) {
		i++
	}
	return entries[i:]
}
