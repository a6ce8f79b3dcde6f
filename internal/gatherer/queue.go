package gatherer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// approvalQueue is the persisted list of items awaiting user decision.
// Insertion order is preserved; expired entries are purged on read, which
// never reorders the survivors. The file is rewritten on every mutation.
type approvalQueue struct {
	path    string
	entries []types.QueueEntry
}

func loadQueue(path string) (*approvalQueue, error) {
	q := &approvalQueue{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, fmt.Errorf("read approval queue: %w", err)
	}
	if err := json.Unmarshal(data, &q.entries); err != nil {
		return nil, fmt.Errorf("corrupt approval queue %s: %w", path, err)
	}
	return q, nil
}

func (q *approvalQueue) save() error {
	data, err := json.MarshalIndent(q.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write approval queue: %w", err)
	}
	return os.Rename(tmp, q.path)
}

// add appends one entry with the standard TTL.
func (q *approvalQueue) add(item types.CollectedItem) error {
	now := time.Now()
	item.Status = types.StatusPending
	q.entries = append(q.entries, types.QueueEntry{
		Item:      item,
		QueuedAt:  now,
		ExpiresAt: now.Add(types.QueueTTL),
	})
	return q.save()
}

// pending purges expired entries and returns the live ones in order.
func (q *approvalQueue) pending() []types.QueueEntry {
	now := time.Now()
	kept := q.entries[:0]
	purged := 0
	for _, e := range q.entries {
		if e.ExpiresAt.After(now) {
			kept = append(kept, e)
		} else {
			purged++
		}
	}
	q.entries = kept
	if purged > 0 {
		logging.Gatherer("purged %d expired queue entries", purged)
		if err := q.save(); err != nil {
			logging.Get(logging.CategoryGatherer).Warn("queue purge save failed: %v", err)
		}
	}
	return append([]types.QueueEntry(nil), q.entries...)
}

// take removes and returns the entry with the given item ID.
func (q *approvalQueue) take(itemID string) (types.CollectedItem, bool) {
	for i, e := range q.entries {
		if e.Item.ID == itemID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			if err := q.save(); err != nil {
				logging.Get(logging.CategoryGatherer).Warn("queue save after take failed: %v", err)
			}
			return e.Item, true
		}
	}
	return types.CollectedItem{}, false
}

// expiringSoon returns live entries whose TTL runs out within the window.
func (q *approvalQueue) expiringSoon(within time.Duration) []types.QueueEntry {
	cutoff := time.Now().Add(within)
	var out []types.QueueEntry
	for _, e := range q.pending() {
		if e.ExpiresAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
