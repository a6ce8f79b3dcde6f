package gatherer

import (
	"path/filepath"
	"testing"
	"time"

	"dossier/internal/types"
)

func testQueue(t *testing.T) *approvalQueue {
	t.Helper()
	q, err := loadQueue(filepath.Join(t.TempDir(), "approval_queue.json"))
	if err != nil {
		t.Fatalf("loadQueue: %v", err)
	}
	return q
}

func TestQueueLoadMissingFile(t *testing.T) {
	q := testQueue(t)
	if len(q.pending()) != 0 {
		t.Error("fresh queue should be empty")
	}
}

func TestQueueAddAndPersist(t *testing.T) {
	q := testQueue(t)
	if err := q.add(types.CollectedItem{ID: "item-1", Title: "First"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := q.add(types.CollectedItem{ID: "item-2", Title: "Second"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	entries := q.pending()
	if len(entries) != 2 {
		t.Fatalf("pending = %d, want 2", len(entries))
	}
	if entries[0].Item.ID != "item-1" {
		t.Error("insertion order not preserved")
	}
	if entries[0].Item.Status != types.StatusPending {
		t.Errorf("queued item status = %s, want pending", entries[0].Item.Status)
	}
	if exp := entries[0].ExpiresAt.Sub(entries[0].QueuedAt); exp != types.QueueTTL {
		t.Errorf("TTL = %v, want %v", exp, types.QueueTTL)
	}

	// Reload from disk.
	q2, err := loadQueue(q.path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(q2.pending()) != 2 {
		t.Error("queue not persisted across reload")
	}
}

func TestQueuePurgesExpired(t *testing.T) {
	q := testQueue(t)
	q.add(types.CollectedItem{ID: "fresh"})
	q.add(types.CollectedItem{ID: "stale"})
	q.entries[1].ExpiresAt = time.Now().Add(-time.Hour)

	entries := q.pending()
	if len(entries) != 1 || entries[0].Item.ID != "fresh" {
		t.Fatalf("pending after purge = %+v", entries)
	}

	// The purge is persisted, not just in-memory.
	q2, err := loadQueue(q.path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(q2.pending()) != 1 {
		t.Error("expired entry survived the on-disk purge")
	}
}

func TestQueueTake(t *testing.T) {
	q := testQueue(t)
	q.add(types.CollectedItem{ID: "a"})
	q.add(types.CollectedItem{ID: "b"})

	item, ok := q.take("a")
	if !ok || item.ID != "a" {
		t.Fatalf("take = %+v, %v", item, ok)
	}
	if _, ok := q.take("a"); ok {
		t.Error("second take of the same ID should miss")
	}
	if len(q.pending()) != 1 {
		t.Error("take should remove exactly one entry")
	}
}

func TestQueueExpiringSoon(t *testing.T) {
	q := testQueue(t)
	q.add(types.CollectedItem{ID: "soon"})
	q.add(types.CollectedItem{ID: "later"})
	q.entries[0].ExpiresAt = time.Now().Add(24 * time.Hour)

	soon := q.expiringSoon(48 * time.Hour)
	if len(soon) != 1 || soon[0].Item.ID != "soon" {
		t.Errorf("expiringSoon = %+v", soon)
	}
}
