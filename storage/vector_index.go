// Package storage provides the in-process vector index and conversation history.
//
// Information Hiding:
// - SQLite connection management hidden behind VectorIndex
// - Embedding wire format (little-endian float32 BLOB) encapsulated
// - Similarity scan and ranking details hidden

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an identifier has no row in the index.
var ErrNotFound = errors.New("resource not found")

// Resource is one indexed unit of knowledge.
type Resource struct {
	ID         string
	Embedding  []float32
	Text       string
	Metadata   map[string]any
	InsertedAt time.Time
}

// Candidate is a search hit. It is never persisted.
type Candidate struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Stats summarizes index contents.
type Stats struct {
	Count      int
	TotalBytes int64
}

// VectorIndex maps identifiers to embeddings, text and metadata.
// Re-inserting an identifier replaces its row. Search is a linear scan.
// A single writer is assumed; operations are not transactional.
type VectorIndex struct {
	db     *sql.DB
	logger *zap.Logger
}

// IndexOption configures a VectorIndex.
type IndexOption func(*VectorIndex)

// WithIndexLogger sets the logger used for skipped rows.
func WithIndexLogger(logger *zap.Logger) IndexOption {
	return func(v *VectorIndex) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVectorIndex creates an in-memory index.
func NewVectorIndex(opts ...IndexOption) (*VectorIndex, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	return newVectorIndex(db, opts)
}

// OpenVectorIndex opens or creates an index persisted at path.
func OpenVectorIndex(path string, opts ...IndexOption) (*VectorIndex, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newVectorIndex(db, opts)
}

func newVectorIndex(db *sql.DB, opts []IndexOption) (*VectorIndex, error) {
	index := &VectorIndex{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(index)
	}

	if err := index.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return index, nil
}

// Close closes the database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

func (v *VectorIndex) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			text TEXT NOT NULL,
			metadata TEXT,
			inserted_at INTEGER NOT NULL
		);
	`

	if _, err := v.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Upsert inserts r, replacing any existing row with the same identifier.
func (v *VectorIndex) Upsert(ctx context.Context, r Resource) error {
	if r.ID == "" {
		return fmt.Errorf("resource identifier cannot be empty")
	}

	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
	}

	insertedAt := r.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = time.Now()
	}

	_, err = v.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO resources (id, embedding, text, metadata, inserted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, encodeVector(r.Embedding), r.Text, meta, insertedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert resource %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the resource stored under id, or ErrNotFound.
func (v *VectorIndex) Get(ctx context.Context, id string) (Resource, error) {
	var (
		blob       []byte
		text       string
		meta       *string
		insertedAt int64
	)
	err := v.db.QueryRowContext(ctx,
		"SELECT embedding, text, metadata, inserted_at FROM resources WHERE id = ?", id,
	).Scan(&blob, &text, &meta, &insertedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Resource{}, fmt.Errorf("failed to query resource %s: %w", id, err)
	}

	return Resource{
		ID:         id,
		Embedding:  decodeVector(blob),
		Text:       text,
		Metadata:   decodeMetadata(meta),
		InsertedAt: time.Unix(0, insertedAt),
	}, nil
}

// Search scores every row against query and returns the best matches.
//
// Scores are plain dot products, so both sides must be unit length.
// A dimension mismatch scores 0. Rows whose stored vector is empty are
// skipped. Results are sorted by descending score, filtered to
// score >= threshold and truncated to limit (limit <= 0 means no limit).
func (v *VectorIndex) Search(ctx context.Context, query []float32, limit int, threshold float64) ([]Candidate, error) {
	rows, err := v.db.QueryContext(ctx, "SELECT id, embedding, text, metadata FROM resources")
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var (
			id   string
			blob []byte
			text string
			meta *string
		)
		if err := rows.Scan(&id, &blob, &text, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}

		vec := decodeVector(blob)
		if len(vec) == 0 {
			v.logger.Warn("skipping resource with empty embedding", zap.String("id", id))
			continue
		}

		candidates = append(candidates, Candidate{
			ID:       id,
			Score:    dot(query, vec),
			Text:     text,
			Metadata: decodeMetadata(meta),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	result := candidates[:0]
	for _, c := range candidates {
		if c.Score >= threshold {
			result = append(result, c)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Delete removes the row for id. Deleting a missing identifier is not an error.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := v.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete resource %s: %w", id, err)
	}
	return nil
}

// Clear removes every row.
func (v *VectorIndex) Clear(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, "DELETE FROM resources"); err != nil {
		return fmt.Errorf("failed to clear resources: %w", err)
	}
	return nil
}

// IDs lists all identifiers in sorted order.
func (v *VectorIndex) IDs(ctx context.Context) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, "SELECT id FROM resources ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identifiers: %w", err)
	}
	return ids, nil
}

// Stats returns the row count and the stored size of embeddings, text and metadata.
func (v *VectorIndex) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := v.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(LENGTH(embedding) + LENGTH(CAST(text AS BLOB)) + COALESCE(LENGTH(CAST(metadata AS BLOB)), 0)), 0)
		 FROM resources`,
	).Scan(&stats.Count, &stats.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}
