// Package memory implements the three-tier memory substrate: working facts
// (small, token-budgeted), recent exchanges (SQLite), and the long-term
// vector archive with namespace isolation.
package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"dossier/internal/logging"
	"dossier/internal/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Recall is the recent-exchanges tier. It also hosts the archive
// access-counter side table and the append-only user-signal log, since the
// vector store cannot update records in place.
type Recall struct {
	db   *sql.DB
	path string
}

// OpenRecall opens (or creates) the recall database at
// <data>/memory/recall_memory.db and applies pending migrations.
func OpenRecall(dataDir string) (*Recall, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenRecall")
	defer timer.Stop()

	path := filepath.Join(dataDir, "memory", "recall_memory.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open recall db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set synchronous=NORMAL: %v", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply recall migrations: %w", err)
	}

	logging.Store("Recall tier ready at %s", path)
	return &Recall{db: db, path: path}, nil
}

// Close closes the underlying database.
func (r *Recall) Close() error {
	return r.db.Close()
}

// =============================================================================
// EXCHANGES
// =============================================================================

// AddExchange appends one role-tagged message to the log.
func (r *Recall) AddExchange(ctx context.Context, ex types.Exchange) error {
	topics, _ := json.Marshal(ex.Topics)
	entities, _ := json.Marshal(ex.Entities)
	ts := ex.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchanges (role, content, notebook_id, topics, entities, timestamp, summarized)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		ex.Role, ex.Content, ex.NotebookID, string(topics), string(entities), ts.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add exchange: %w", err)
	}
	return nil
}

// ListExchanges returns exchanges for a notebook since a timestamp, oldest
// first. An empty notebookID returns all notebooks.
func (r *Recall) ListExchanges(ctx context.Context, notebookID string, since time.Time, limit int) ([]types.Exchange, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT id, role, content, notebook_id, topics, entities, timestamp, summarized
	          FROM exchanges WHERE timestamp >= ?`
	args := []interface{}{since.UTC().Format(time.RFC3339)}
	if notebookID != "" {
		query += " AND notebook_id = ?"
		args = append(args, notebookID)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []types.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			continue
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func scanExchange(rows *sql.Rows) (types.Exchange, error) {
	var ex types.Exchange
	var topics, entities, ts string
	var summarized int
	if err := rows.Scan(&ex.ID, &ex.Role, &ex.Content, &ex.NotebookID, &topics, &entities, &ts, &summarized); err != nil {
		return ex, err
	}
	json.Unmarshal([]byte(topics), &ex.Topics)
	json.Unmarshal([]byte(entities), &ex.Entities)
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		ex.Timestamp = t
	}
	ex.Summarized = summarized != 0
	return ex, nil
}

// CountUnsummarized returns how many exchanges have not yet been folded into
// the archive.
func (r *Recall) CountUnsummarized(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges WHERE summarized = 0").Scan(&n)
	return n, err
}

// UnsummarizedExchanges returns the oldest unsummarized exchanges.
func (r *Recall) UnsummarizedExchanges(ctx context.Context, limit int) ([]types.Exchange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, content, notebook_id, topics, entities, timestamp, summarized
		 FROM exchanges WHERE summarized = 0 ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			continue
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// MarkSummarized flags exchanges as folded into the archive. Safe to retry.
func (r *Recall) MarkSummarized(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "UPDATE exchanges SET summarized = 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("mark summarized %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// ARCHIVE ACCESS COUNTERS
// =============================================================================

// TrackArchiveAccess bumps the access counter for an archive record.
// The archive record itself is write-once.
func (r *Recall) TrackArchiveAccess(ctx context.Context, recordID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO archive_access (record_id, access_count, last_accessed)
		 VALUES (?, 1, ?)
		 ON CONFLICT(record_id) DO UPDATE SET
		   access_count = access_count + 1, last_accessed = excluded.last_accessed`,
		recordID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ArchiveAccessCount returns the access counter for an archive record.
func (r *Recall) ArchiveAccessCount(ctx context.Context, recordID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT access_count FROM archive_access WHERE record_id = ?", recordID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// =============================================================================
// USER SIGNALS
// =============================================================================

// AppendSignal appends one signal to the per-notebook FIFO log. Signals are
// never mutated after this.
func (r *Recall) AppendSignal(ctx context.Context, sig types.Signal) error {
	meta, _ := json.Marshal(sig.Metadata)
	ts := sig.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signals (notebook_id, signal_type, item_id, query, timestamp, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sig.NotebookID, string(sig.SignalType), sig.ItemID, sig.Query,
		ts.UTC().Format(time.RFC3339), string(meta))
	if err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	logging.SignalsDebug("signal %s for notebook %s", sig.SignalType, sig.NotebookID)
	return nil
}

// ListSignals returns a notebook's signals since a timestamp, in insertion
// order.
func (r *Recall) ListSignals(ctx context.Context, notebookID string, since time.Time) ([]types.Signal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT notebook_id, signal_type, item_id, query, timestamp, metadata
		 FROM signals WHERE notebook_id = ? AND timestamp >= ? ORDER BY id ASC`,
		notebookID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []types.Signal
	for rows.Next() {
		var sig types.Signal
		var st, ts, meta string
		if err := rows.Scan(&sig.NotebookID, &st, &sig.ItemID, &sig.Query, &ts, &meta); err != nil {
			continue
		}
		sig.SignalType = types.SignalType(st)
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			sig.Timestamp = t
		}
		json.Unmarshal([]byte(meta), &sig.Metadata)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// CountSignals returns the number of signals logged for a notebook.
func (r *Recall) CountSignals(ctx context.Context, notebookID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM signals WHERE notebook_id = ?", notebookID).Scan(&n)
	return n, err
}
