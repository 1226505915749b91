package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// Ensure *Store implements the full backend contract at compile time.
var _ memory.Store = (*Store)(nil)

// vectorColumns maps named vectors to their schema columns. The column name
// is interpolated into SQL, so lookups must go through this map and never
// through caller input directly.
var vectorColumns = map[string]string{
	types.VectorContent:  "content_vec",
	types.VectorEmotion:  "emotion_vec",
	types.VectorSemantic: "semantic_vec",
}

// recordColumns is the canonical SELECT column list for memory_records.
// It must match the scan order in scanRecord.
const recordColumns = `
	id, user_id, content, emotion_label, emotion_intensity,
	timestamp, session_id, status
`

// Store is the pgvector-backed memory store.
type Store struct {
	db         *sql.DB
	collection string
}

// Open connects to PostgreSQL, applies the schema, and returns a store
// scoped to one logical collection.
func Open(dsn, collection string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", memory.ErrBackendUnavailable)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{db: db, collection: collection}, nil
}

// NewWithDB wraps an existing connection pool. Used by tests and by callers
// that manage the pool themselves.
func NewWithDB(db *sql.DB, collection string) *Store {
	return &Store{db: db, collection: collection}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SearchVector returns the top-limit records for the user by cosine
// similarity of the query embedding against one named vector.
func (s *Store) SearchVector(ctx context.Context, userID, vectorName string, query []float32, limit int) ([]memory.VectorHit, error) {
	col, ok := vectorColumns[vectorName]
	if !ok {
		return nil, fmt.Errorf("postgres: SearchVector %q: %w", vectorName, memory.ErrUnknownVector)
	}
	if len(query) != types.EmbeddingDim {
		return nil, fmt.Errorf("postgres: SearchVector: query dimension %d: %w", len(query), memory.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}

	// <=> is cosine distance; similarity = 1 - distance.
	querySQL := fmt.Sprintf(`
		SELECT `+recordColumns+`, 1 - (%s <=> $1) AS score
		FROM memory_records
		WHERE collection = $2 AND user_id = $3 AND %s IS NOT NULL
		ORDER BY %s <=> $1
		LIMIT $4
	`, col, col, col)

	rows, err := s.db.QueryContext(ctx, querySQL, pgvector.NewVector(query), s.collection, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: SearchVector %s: %w", vectorName, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []memory.VectorHit
	for rows.Next() {
		var rec types.MemoryRecord
		var score float64
		if err := scanRecord(rows, &rec, &score); err != nil {
			return nil, fmt.Errorf("postgres: SearchVector scan: %w", err)
		}
		hits = append(hits, memory.VectorHit{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: SearchVector rows: %w", err)
	}
	return hits, nil
}

// ListChronological returns records ordered by the window's direction.
// DirectionOldest orders ascending; DirectionNewest descending. The sort
// order is part of the temporal contract, not an optimization.
func (s *Store) ListChronological(ctx context.Context, userID, sessionID string, window types.TemporalWindow) ([]types.MemoryRecord, error) {
	limit := window.Limit
	if limit < 1 {
		limit = 10
	}

	order := "DESC"
	if window.Direction == types.DirectionOldest {
		order = "ASC"
	}

	conds := "collection = $1 AND user_id = $2"
	args := []interface{}{s.collection, userID}

	if window.Scope == types.ScopeSession && sessionID != "" {
		args = append(args, sessionID)
		conds += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if !window.After.IsZero() {
		args = append(args, window.After.Unix())
		conds += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if !window.Before.IsZero() {
		args = append(args, window.Before.Unix())
		conds += fmt.Sprintf(" AND timestamp < $%d", len(args))
	}

	args = append(args, limit)
	querySQL := fmt.Sprintf(`
		SELECT `+recordColumns+`, 0 AS score
		FROM memory_records
		WHERE %s
		ORDER BY timestamp %s
		LIMIT $%d
	`, conds, order, len(args))

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: ListChronological: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.MemoryRecord
	for rows.Next() {
		var rec types.MemoryRecord
		var score float64
		if err := scanRecord(rows, &rec, &score); err != nil {
			return nil, fmt.Errorf("postgres: ListChronological scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: ListChronological rows: %w", err)
	}
	return records, nil
}

// StoreRecord inserts a record with all named vectors.
func (s *Store) StoreRecord(ctx context.Context, record *types.MemoryRecord) error {
	if record == nil || record.ID == "" || record.UserID == "" {
		return fmt.Errorf("postgres: StoreRecord: id and user_id are required: %w", memory.ErrInvalidInput)
	}

	vecs := make(map[string]interface{}, len(vectorColumns))
	for name := range vectorColumns {
		emb, ok := record.Vectors[name]
		if !ok {
			vecs[name] = nil
			continue
		}
		if len(emb) != types.EmbeddingDim {
			return fmt.Errorf("postgres: StoreRecord: %s dimension %d: %w", name, len(emb), memory.ErrInvalidInput)
		}
		vecs[name] = pgvector.NewVector(emb)
	}

	status := record.Status
	if status == "" {
		status = "pending"
	}
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	const insertSQL = `
		INSERT INTO memory_records (
			id, collection, user_id, content,
			content_vec, emotion_vec, semantic_vec,
			emotion_label, emotion_intensity, timestamp, session_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, insertSQL,
		record.ID, s.collection, record.UserID, record.Content,
		vecs[types.VectorContent], vecs[types.VectorEmotion], vecs[types.VectorSemantic],
		nullString(record.EmotionLabel), record.EmotionIntensity,
		ts.Unix(), nullString(record.SessionID), status,
	)
	if err != nil {
		return fmt.Errorf("postgres: StoreRecord %s: %w", record.ID, err)
	}
	return nil
}

// scanRecord scans one row in recordColumns order plus a trailing score.
func scanRecord(rows *sql.Rows, rec *types.MemoryRecord, score *float64) error {
	var emotionLabel, sessionID sql.NullString
	var ts int64

	if err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.Content,
		&emotionLabel, &rec.EmotionIntensity,
		&ts, &sessionID, &rec.Status,
		score,
	); err != nil {
		return err
	}

	if emotionLabel.Valid {
		rec.EmotionLabel = emotionLabel.String
	}
	if sessionID.Valid {
		rec.SessionID = sessionID.String
	}
	rec.Timestamp = time.Unix(ts, 0).UTC()
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
