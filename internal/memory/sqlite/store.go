// Package sqlite provides a single-node memory store. Embeddings are stored
// as little-endian float32 BLOBs and similarity is computed with an
// in-process cosine scan, which is ample for the per-user record counts a
// single deployment sees.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

var _ memory.Store = (*Store)(nil)

// Schema contains the SQL statements to create the memory schema.
// The payload column names mirror the postgres backend and are frozen.
const Schema = `
CREATE TABLE IF NOT EXISTS memory_records (
    id TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,

    content_vec BLOB,
    emotion_vec BLOB,
    semantic_vec BLOB,

    emotion_label TEXT,
    emotion_intensity REAL NOT NULL DEFAULT 0,

    timestamp INTEGER NOT NULL,
    session_id TEXT,
    status TEXT NOT NULL DEFAULT 'pending',

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memory_records_user_time
    ON memory_records(collection, user_id, timestamp);
`

var vectorColumns = map[string]string{
	types.VectorContent:  "content_vec",
	types.VectorEmotion:  "emotion_vec",
	types.VectorSemantic: "semantic_vec",
}

// Store is the sqlite-backed memory store.
type Store struct {
	db         *sql.DB
	collection string
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path, collection string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// Single writer: sqlite serializes writes anyway, and one connection
	// keeps ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db, collection: collection}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SearchVector scans the user's records, scores the named vector by cosine
// similarity, and returns the top-limit hits.
func (s *Store) SearchVector(ctx context.Context, userID, vectorName string, query []float32, limit int) ([]memory.VectorHit, error) {
	col, ok := vectorColumns[vectorName]
	if !ok {
		return nil, fmt.Errorf("sqlite: SearchVector %q: %w", vectorName, memory.ErrUnknownVector)
	}
	if len(query) != types.EmbeddingDim {
		return nil, fmt.Errorf("sqlite: SearchVector: query dimension %d: %w", len(query), memory.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 10
	}

	querySQL := fmt.Sprintf(`
		SELECT id, user_id, content, emotion_label, emotion_intensity,
		       timestamp, session_id, status, %s
		FROM memory_records
		WHERE collection = ? AND user_id = ? AND %s IS NOT NULL
	`, col, col)

	rows, err := s.db.QueryContext(ctx, querySQL, s.collection, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: SearchVector %s: %w", vectorName, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []memory.VectorHit
	for rows.Next() {
		rec, blob, err := scanRecordWithBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: SearchVector scan: %w", err)
		}
		emb, err := deserializeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite: SearchVector record %s: %w", rec.ID, err)
		}
		hits = append(hits, memory.VectorHit{Record: rec, Score: cosineSimilarity(query, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: SearchVector rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.Timestamp.After(hits[j].Record.Timestamp)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ListChronological returns records ordered by the window's direction.
func (s *Store) ListChronological(ctx context.Context, userID, sessionID string, window types.TemporalWindow) ([]types.MemoryRecord, error) {
	limit := window.Limit
	if limit < 1 {
		limit = 10
	}

	order := "DESC"
	if window.Direction == types.DirectionOldest {
		order = "ASC"
	}

	conds := "collection = ? AND user_id = ?"
	args := []interface{}{s.collection, userID}

	if window.Scope == types.ScopeSession && sessionID != "" {
		conds += " AND session_id = ?"
		args = append(args, sessionID)
	}
	if !window.After.IsZero() {
		conds += " AND timestamp >= ?"
		args = append(args, window.After.Unix())
	}
	if !window.Before.IsZero() {
		conds += " AND timestamp < ?"
		args = append(args, window.Before.Unix())
	}
	args = append(args, limit)

	querySQL := fmt.Sprintf(`
		SELECT id, user_id, content, emotion_label, emotion_intensity,
		       timestamp, session_id, status
		FROM memory_records
		WHERE %s
		ORDER BY timestamp %s
		LIMIT ?
	`, conds, order)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ListChronological: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: ListChronological scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: ListChronological rows: %w", err)
	}
	return records, nil
}

// StoreRecord inserts a record with all named vectors.
func (s *Store) StoreRecord(ctx context.Context, record *types.MemoryRecord) error {
	if record == nil || record.ID == "" || record.UserID == "" {
		return fmt.Errorf("sqlite: StoreRecord: id and user_id are required: %w", memory.ErrInvalidInput)
	}

	blobs := make(map[string][]byte, len(vectorColumns))
	for name := range vectorColumns {
		emb, ok := record.Vectors[name]
		if !ok {
			continue
		}
		if len(emb) != types.EmbeddingDim {
			return fmt.Errorf("sqlite: StoreRecord: %s dimension %d: %w", name, len(emb), memory.ErrInvalidInput)
		}
		blobs[name] = serializeEmbedding(emb)
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, insertSQL,
		record.ID, s.collection, record.UserID, record.Content,
		blobs[types.VectorContent], blobs[types.VectorEmotion], blobs[types.VectorSemantic],
		nullString(record.EmotionLabel), record.EmotionIntensity,
		ts.Unix(), nullString(record.SessionID), status,
	)
	if err != nil {
		return fmt.Errorf("sqlite: StoreRecord %s: %w", record.ID, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (types.MemoryRecord, error) {
	var rec types.MemoryRecord
	var emotionLabel, sessionID sql.NullString
	var ts int64

	if err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.Content,
		&emotionLabel, &rec.EmotionIntensity,
		&ts, &sessionID, &rec.Status,
	); err != nil {
		return rec, err
	}
	if emotionLabel.Valid {
		rec.EmotionLabel = emotionLabel.String
	}
	if sessionID.Valid {
		rec.SessionID = sessionID.String
	}
	rec.Timestamp = time.Unix(ts, 0).UTC()
	return rec, nil
}

func scanRecordWithBlob(rows *sql.Rows) (types.MemoryRecord, []byte, error) {
	var rec types.MemoryRecord
	var emotionLabel, sessionID sql.NullString
	var ts int64
	var blob []byte

	if err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.Content,
		&emotionLabel, &rec.EmotionIntensity,
		&ts, &sessionID, &rec.Status,
		&blob,
	); err != nil {
		return rec, nil, err
	}
	if emotionLabel.Valid {
		rec.EmotionLabel = emotionLabel.String
	}
	if sessionID.Valid {
		rec.SessionID = sessionID.String
	}
	rec.Timestamp = time.Unix(ts, 0).UTC()
	return rec, blob, nil
}

// serializeEmbedding converts a float32 slice to little-endian bytes.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32 slice.
func deserializeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob size %d is not a multiple of 4", len(buf))
	}
	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
