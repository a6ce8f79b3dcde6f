package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"dossier/internal/embedding"
	"dossier/internal/logging"
	"dossier/internal/types"
)

// AgentKind identifies who is reading the archive. The namespace ACL is
// keyed on this identity and fails closed on anything it does not know.
type AgentKind string

const (
	AgentSystem     AgentKind = "system"
	AgentSupervisor AgentKind = "supervisor"
	AgentGatherer   AgentKind = "gatherer"
)

// Reader is the identity a search runs under.
type Reader struct {
	Agent      AgentKind
	NotebookID string // required for gatherer readers
	// CrossNotebook lets the Supervisor read all namespaces. Ignored for
	// any other agent.
	CrossNotebook bool
}

// SystemReader is the identity used by the memory tiers themselves.
var SystemReader = Reader{Agent: AgentSystem}

// AccessTracker records archive reads. The archive record is write-once, so
// the mutable counter lives elsewhere (the recall DB).
type AccessTracker interface {
	TrackArchiveAccess(ctx context.Context, recordID string) error
}

// Archive is the long-term vector-indexed tier, persisted under
// <data>/memory/archival_memory/. Records are immutable after Store.
type Archive struct {
	db      *sql.DB
	engine  embedding.Engine
	tracker AccessTracker
	vecANN  bool // sqlite-vec vec0 table available
}

// OpenArchive opens the archive store. The embedding engine may be nil, in
// which case search degrades to recency listing and semantic dedup is
// disabled.
func OpenArchive(dataDir string, engine embedding.Engine, tracker AccessTracker) (*Archive, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenArchive")
	defer timer.Stop()

	dir := filepath.Join(dataDir, "memory", "archival_memory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, "archive.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set journal_mode=WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS archive (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL DEFAULT '',
		source_notebook TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '[]',
		entities TEXT NOT NULL DEFAULT '[]',
		importance TEXT NOT NULL DEFAULT 'medium',
		namespace TEXT NOT NULL,
		embedding TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archive_namespace ON archive(namespace, source_notebook);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	a := &Archive{db: db, engine: engine, tracker: tracker}
	a.detectVecANN()
	logging.Store("Archive tier ready at %s (ANN=%v)", path, a.vecANN)
	return a, nil
}

// detectVecANN probes for the sqlite-vec extension. When present (cgo build
// with the sqlite_vec tag), ANN search uses a vec0 virtual table; otherwise
// search falls back to a full cosine scan over stored embeddings.
func (a *Archive) detectVecANN() {
	var version string
	if err := a.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		a.vecANN = false
		return
	}
	dim := 1024
	if a.engine != nil {
		dim = a.engine.Dimensions()
	}
	_, err := a.db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS archive_vec USING vec0(record_id TEXT, embedding float[%d])", dim))
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("vec0 table creation failed, using scan fallback: %v", err)
		a.vecANN = false
		return
	}
	a.vecANN = true
	logging.Store("sqlite-vec %s detected, ANN search enabled", version)
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Store writes one immutable record. The record's ID is assigned here if
// empty and returned via the record copy; there is no update path.
func (a *Archive) Store(ctx context.Context, rec types.ArchiveRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Namespace == "" {
		rec.Namespace = types.NamespaceSystem
	}
	if rec.Namespace == types.NamespaceGatherer && rec.SourceNotebook == "" {
		return fmt.Errorf("gatherer-namespace record requires a source notebook")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var embeddingJSON sql.NullString
	if a.engine != nil {
		vec, err := a.engine.Embed(ctx, rec.Content)
		if err != nil {
			// Store without embedding rather than dropping the record; it
			// stays reachable through recency listing.
			logging.Get(logging.CategoryStore).Warn("embedding failed for archive record: %v", err)
		} else if data, err := json.Marshal(vec); err == nil {
			embeddingJSON = sql.NullString{String: string(data), Valid: true}
			if a.vecANN {
				if blob, err := json.Marshal(vec); err == nil {
					if _, err := a.db.ExecContext(ctx,
						"INSERT INTO archive_vec (record_id, embedding) VALUES (?, ?)",
						rec.ID, string(blob)); err != nil {
						logging.StoreDebug("vec0 insert failed: %v", err)
					}
				}
			}
		}
	}

	topics, _ := json.Marshal(rec.Topics)
	entities, _ := json.Marshal(rec.Entities)
	importance := rec.Importance
	if importance == "" {
		importance = types.ImportanceMedium
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO archive (id, content, content_type, source_type, source_notebook,
		   topics, entities, importance, namespace, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, rec.ContentType, rec.SourceType, rec.SourceNotebook,
		string(topics), string(entities), string(importance), string(rec.Namespace),
		embeddingJSON, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store archive record: %w", err)
	}
	return nil
}

// aclClause builds the namespace visibility filter for a reader. The second
// return is false when the identity grants nothing; callers must then
// return empty rather than querying.
func aclClause(reader Reader) (string, []interface{}, bool) {
	switch reader.Agent {
	case AgentSystem:
		return "1=1", nil, true
	case AgentSupervisor:
		if reader.CrossNotebook {
			return "1=1", nil, true
		}
		return "namespace IN (?, ?)", []interface{}{string(types.NamespaceSystem), string(types.NamespaceSupervisor)}, true
	case AgentGatherer:
		if reader.NotebookID == "" {
			return "", nil, false
		}
		return "(namespace = ? OR (namespace = ? AND source_notebook = ?))",
			[]interface{}{string(types.NamespaceSystem), string(types.NamespaceGatherer), reader.NotebookID}, true
	default:
		return "", nil, false
	}
}

// SearchOptions bound an archive search.
type SearchOptions struct {
	Limit         int
	MinSimilarity float64
}

// Search performs a semantic search under the reader's identity. ACL
// violations fail closed: an identity with no grants gets an empty result,
// never an error that would leak record existence.
func (a *Archive) Search(ctx context.Context, reader Reader, query string, opts SearchOptions) ([]types.ArchiveHit, error) {
	where, args, ok := aclClause(reader)
	if !ok {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if a.engine == nil {
		return a.listRecent(ctx, where, args, opts.Limit)
	}

	queryVec, err := a.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if a.vecANN {
		hits, err := a.searchVec(ctx, queryVec, where, args, opts)
		if err == nil {
			a.trackHits(ctx, hits)
			return hits, nil
		}
		logging.Get(logging.CategoryStore).Warn("vec search failed, falling back to scan: %v", err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, content, content_type, source_type, source_notebook,
		        topics, entities, importance, namespace, embedding, created_at
		 FROM archive WHERE embedding IS NOT NULL AND `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("archive search: %w", err)
	}
	defer rows.Close()

	var hits []types.ArchiveHit
	for rows.Next() {
		rec, vec, err := scanArchiveRow(rows)
		if err != nil {
			continue
		}
		dist, err := embedding.CosineDistance(queryVec, vec)
		if err != nil {
			continue
		}
		score := embedding.ScoreFromDistance(dist)
		if score < opts.MinSimilarity {
			continue
		}
		hits = append(hits, types.ArchiveHit{Record: rec, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	a.trackHits(ctx, hits)
	return hits, nil
}

// searchVec runs the KNN query through the vec0 table, joined back to the
// archive rows so the reader's ACL applies inside the query.
func (a *Archive) searchVec(ctx context.Context, queryVec []float32, where string, args []interface{}, opts SearchOptions) ([]types.ArchiveHit, error) {
	queryJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, err
	}
	qargs := append([]interface{}{string(queryJSON)}, args...)
	qargs = append(qargs, opts.Limit)

	rows, err := a.db.QueryContext(ctx,
		`SELECT ar.id, ar.content, ar.content_type, ar.source_type, ar.source_notebook,
		        ar.topics, ar.entities, ar.importance, ar.namespace, ar.created_at,
		        vec_distance_cosine(v.embedding, ?) AS distance
		 FROM archive_vec v
		 JOIN archive ar ON ar.id = v.record_id
		 WHERE `+where+`
		 ORDER BY distance ASC
		 LIMIT ?`, qargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.ArchiveHit
	for rows.Next() {
		var rec types.ArchiveRecord
		var topics, entities, importance, namespace, created string
		var distance float64
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.ContentType, &rec.SourceType,
			&rec.SourceNotebook, &topics, &entities, &importance, &namespace,
			&created, &distance); err != nil {
			continue
		}
		json.Unmarshal([]byte(topics), &rec.Topics)
		json.Unmarshal([]byte(entities), &rec.Entities)
		rec.Importance = types.Importance(importance)
		rec.Namespace = types.Namespace(namespace)
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			rec.CreatedAt = t
		}
		score := embedding.ScoreFromDistance(distance)
		if score < opts.MinSimilarity {
			continue
		}
		hits = append(hits, types.ArchiveHit{Record: rec, Similarity: score})
	}
	return hits, rows.Err()
}

func (a *Archive) trackHits(ctx context.Context, hits []types.ArchiveHit) {
	if a.tracker == nil {
		return
	}
	for _, h := range hits {
		if err := a.tracker.TrackArchiveAccess(ctx, h.Record.ID); err != nil {
			logging.StoreDebug("access tracking failed: %v", err)
		}
	}
}

// ListRecent returns the reader-visible records most recently created.
func (a *Archive) ListRecent(ctx context.Context, reader Reader, limit int) ([]types.ArchiveRecord, error) {
	where, args, ok := aclClause(reader)
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	hits, err := a.listRecent(ctx, where, args, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.ArchiveRecord, len(hits))
	for i, h := range hits {
		out[i] = h.Record
	}
	return out, nil
}

func (a *Archive) listRecent(ctx context.Context, where string, args []interface{}, limit int) ([]types.ArchiveHit, error) {
	query := `SELECT id, content, content_type, source_type, source_notebook,
	                 topics, entities, importance, namespace, embedding, created_at
	          FROM archive WHERE ` + where + " ORDER BY created_at DESC LIMIT ?"
	rows, err := a.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("archive list: %w", err)
	}
	defer rows.Close()

	var hits []types.ArchiveHit
	for rows.Next() {
		rec, _, err := scanArchiveRow(rows)
		if err != nil {
			continue
		}
		hits = append(hits, types.ArchiveHit{Record: rec})
	}
	return hits, rows.Err()
}

// Count returns the number of records visible to the reader.
func (a *Archive) Count(ctx context.Context, reader Reader) (int, error) {
	where, args, ok := aclClause(reader)
	if !ok {
		return 0, nil
	}
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archive WHERE "+where, args...).Scan(&n)
	return n, err
}

func scanArchiveRow(rows *sql.Rows) (types.ArchiveRecord, []float32, error) {
	var rec types.ArchiveRecord
	var topics, entities, importance, namespace, created string
	var embeddingJSON sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Content, &rec.ContentType, &rec.SourceType,
		&rec.SourceNotebook, &topics, &entities, &importance, &namespace,
		&embeddingJSON, &created); err != nil {
		return rec, nil, err
	}
	json.Unmarshal([]byte(topics), &rec.Topics)
	json.Unmarshal([]byte(entities), &rec.Entities)
	rec.Importance = types.Importance(importance)
	rec.Namespace = types.Namespace(namespace)
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		rec.CreatedAt = t
	}

	var vec []float32
	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &vec); err != nil {
			return rec, nil, err
		}
	}
	return rec, vec, nil
}
