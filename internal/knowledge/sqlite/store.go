// Package sqlite implements the knowledge graph store on a single-node
// sqlite database. Trigram similarity and graph traversal run in
// application code, so the backend needs no extensions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

var _ knowledge.Store = (*Store)(nil)

// Schema contains the SQL statements to create the graph schema. Column
// names mirror the postgres backend; times are stored as unix seconds.
const Schema = `
CREATE TABLE IF NOT EXISTS fact_entities (
    id          TEXT PRIMARY KEY,
    entity_name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    UNIQUE (entity_name, entity_type)
);

CREATE TABLE IF NOT EXISTS user_fact_relationships (
    user_id           TEXT NOT NULL,
    entity_id         TEXT NOT NULL REFERENCES fact_entities(id),
    relationship_type TEXT NOT NULL,
    confidence        REAL NOT NULL,
    emotional_context TEXT NOT NULL DEFAULT '',
    last_mentioned    INTEGER NOT NULL,
    mention_count     INTEGER NOT NULL DEFAULT 1,
    superseded_by     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (user_id, entity_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS entity_relationships (
    entity_a_id       TEXT NOT NULL REFERENCES fact_entities(id),
    entity_b_id       TEXT NOT NULL REFERENCES fact_entities(id),
    relationship_type TEXT NOT NULL,
    weight            REAL NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL,
    PRIMARY KEY (entity_a_id, entity_b_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_user_facts_user
    ON user_fact_relationships (user_id, confidence DESC);
CREATE INDEX IF NOT EXISTS idx_entity_rel_a
    ON entity_relationships (entity_a_id);
`

const discoveryCandidateCap = 200

// Store is the sqlite-backed knowledge graph.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
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
	return &Store{db: db, logger: log.WithPrefix("knowledge")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreFact upserts the entity and the fact inside one transaction,
// resolving contradictions against opposing relationship types first.
// similar_to discovery runs after commit and is best effort.
func (s *Store) StoreFact(ctx context.Context, input knowledge.FactInput) error {
	if err := input.Validate(); err != nil {
		return fmt.Errorf("sqlite: StoreFact: %w", err)
	}
	name := knowledge.NormalizeEntityName(input.EntityName)
	mentionedAt := input.At()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: StoreFact: begin: %w", err)
	}
	defer tx.Rollback()

	entityID, err := upsertEntity(ctx, tx, name, input.EntityType)
	if err != nil {
		return fmt.Errorf("sqlite: StoreFact: %w", err)
	}

	supersededBy, err := resolveOpposing(ctx, tx, input, entityID, mentionedAt)
	if err != nil {
		return fmt.Errorf("sqlite: StoreFact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_fact_relationships
			(user_id, entity_id, relationship_type, confidence,
			 emotional_context, last_mentioned, mention_count, superseded_by)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (user_id, entity_id, relationship_type) DO UPDATE SET
			confidence        = MAX(confidence, excluded.confidence),
			mention_count     = mention_count + 1,
			last_mentioned    = MAX(last_mentioned, excluded.last_mentioned),
			emotional_context = CASE WHEN excluded.emotional_context <> ''
				THEN excluded.emotional_context
				ELSE emotional_context END,
			superseded_by     = excluded.superseded_by`,
		input.UserID, entityID, input.RelationshipType, input.Confidence,
		input.EmotionalContext, mentionedAt.Unix(), supersededBy)
	if err != nil {
		return fmt.Errorf("sqlite: StoreFact: upsert fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: StoreFact: commit: %w", err)
	}

	if err := s.discoverSimilar(ctx, entityID, name, input.EntityType); err != nil {
		s.logger.Warn("similar_to discovery failed", "entity", name, "err", err)
	}
	return nil
}

func upsertEntity(ctx context.Context, tx *sql.Tx, name, entityType string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO fact_entities (id, entity_name, entity_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_name, entity_type) DO UPDATE SET entity_name = excluded.entity_name
		RETURNING id`,
		uuid.NewString(), name, entityType, time.Now().Unix()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert entity: %w", err)
	}
	return id, nil
}

func resolveOpposing(ctx context.Context, tx *sql.Tx, input knowledge.FactInput, entityID string, mentionedAt time.Time) (string, error) {
	opposing := knowledge.OpposingTypes(input.RelationshipType)
	if len(opposing) == 0 {
		return "", nil
	}

	query := `
		SELECT relationship_type, confidence, last_mentioned
		FROM user_fact_relationships
		WHERE user_id = ? AND entity_id = ?
		  AND relationship_type IN (` + placeholders(len(opposing)) + `)
		  AND superseded_by = ''`
	args := []any{input.UserID, entityID}
	for _, t := range opposing {
		args = append(args, t)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("query opposing facts: %w", err)
	}
	defer rows.Close()

	var existing []types.Fact
	for rows.Next() {
		var f types.Fact
		var lastMentioned int64
		if err := rows.Scan(&f.RelationshipType, &f.Confidence, &lastMentioned); err != nil {
			return "", fmt.Errorf("scan opposing fact: %w", err)
		}
		f.LastMentioned = time.Unix(lastMentioned, 0).UTC()
		existing = append(existing, f)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate opposing facts: %w", err)
	}

	supersededBy := ""
	for _, f := range existing {
		switch knowledge.Resolve(f, input.Confidence, mentionedAt) {
		case knowledge.NewFactWins:
			_, err := tx.ExecContext(ctx, `
				UPDATE user_fact_relationships
				SET superseded_by = ?
				WHERE user_id = ? AND entity_id = ? AND relationship_type = ?`,
				input.RelationshipType, input.UserID, entityID, f.RelationshipType)
			if err != nil {
				return "", fmt.Errorf("flag superseded fact: %w", err)
			}
		case knowledge.ExistingFactWins:
			if supersededBy == "" {
				supersededBy = f.RelationshipType
			}
		}
	}
	return supersededBy, nil
}

func (s *Store) discoverSimilar(ctx context.Context, entityID, name, entityType string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_name FROM fact_entities
		WHERE entity_type = ? AND id <> ?
		LIMIT ?`,
		entityType, entityID, discoveryCandidateCap)
	if err != nil {
		return fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id    string
		score float64
	}
	var matches []candidate
	for rows.Next() {
		var id, otherName string
		if err := rows.Scan(&id, &otherName); err != nil {
			return fmt.Errorf("scan candidate: %w", err)
		}
		if sim := knowledge.TrigramSimilarity(name, otherName); sim >= knowledge.DiscoverySimilarityFloor {
			matches = append(matches, candidate{id: id, score: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate candidates: %w", err)
	}

	for _, m := range matches {
		a, b := entityID, m.id
		if b < a {
			a, b = b, a
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO entity_relationships (entity_a_id, entity_b_id, relationship_type, weight, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (entity_a_id, entity_b_id, relationship_type) DO UPDATE SET
				weight = MAX(weight, excluded.weight)`,
			a, b, types.RelSimilarTo, m.score, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("upsert similar_to edge: %w", err)
		}
	}
	return nil
}

// GetUserFacts returns the user's facts ordered by confidence descending,
// then last_mentioned descending.
func (s *Store) GetUserFacts(ctx context.Context, userID string, filter knowledge.FactFilter) ([]types.Fact, error) {
	if userID == "" {
		return nil, fmt.Errorf("sqlite: GetUserFacts: empty user id: %w", knowledge.ErrInvalidInput)
	}
	filter.Normalize()

	query := `
		SELECT f.user_id, f.entity_id, e.entity_name, e.entity_type,
		       f.relationship_type, f.confidence, f.emotional_context,
		       f.last_mentioned, f.mention_count, f.superseded_by
		FROM user_fact_relationships f
		JOIN fact_entities e ON e.id = f.entity_id
		WHERE f.user_id = ? AND f.confidence >= ?`
	args := []any{userID, filter.MinConfidence}

	if !filter.IncludeSuperseded {
		query += ` AND f.superseded_by = ''`
	}
	if filter.EntityType != "" {
		query += ` AND e.entity_type = ?`
		args = append(args, filter.EntityType)
	}
	if len(filter.RelationshipTypes) > 0 {
		query += ` AND f.relationship_type IN (` + placeholders(len(filter.RelationshipTypes)) + `)`
		for _, t := range filter.RelationshipTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY f.confidence DESC, f.last_mentioned DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetUserFacts: %w", err)
	}
	defer rows.Close()

	var facts []types.Fact
	for rows.Next() {
		var f types.Fact
		var lastMentioned int64
		err := rows.Scan(&f.UserID, &f.EntityID, &f.EntityName, &f.EntityType,
			&f.RelationshipType, &f.Confidence, &f.EmotionalContext,
			&lastMentioned, &f.MentionCount, &f.SupersededBy)
		if err != nil {
			return nil, fmt.Errorf("sqlite: GetUserFacts: scan: %w", err)
		}
		f.LastMentioned = time.Unix(lastMentioned, 0).UTC()
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: GetUserFacts: %w", err)
	}
	return facts, nil
}

// GetRelatedEntities walks similar_to edges outward from the named entity,
// one adjacency query per hop level.
func (s *Store) GetRelatedEntities(ctx context.Context, entityName string, maxHops int) ([]types.RelatedEntity, error) {
	name := knowledge.NormalizeEntityName(entityName)
	if name == "" {
		return nil, fmt.Errorf("sqlite: GetRelatedEntities: empty entity name: %w", knowledge.ErrInvalidInput)
	}

	var seed types.Entity
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entity_name, entity_type, category, created_at
		FROM fact_entities WHERE entity_name = ?
		ORDER BY created_at LIMIT 1`, name).
		Scan(&seed.ID, &seed.Name, &seed.Type, &seed.Category, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: GetRelatedEntities %q: %w", entityName, knowledge.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetRelatedEntities: %w", err)
	}
	seed.CreatedAt = time.Unix(createdAt, 0).UTC()

	related, err := knowledge.TraverseSimilar(ctx, seed, maxHops, s.neighborEntities)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetRelatedEntities: %w", err)
	}
	return related, nil
}

func (s *Store) neighborEntities(ctx context.Context, entityIDs []string) (map[string][]types.Entity, error) {
	ph := placeholders(len(entityIDs))
	query := `
		SELECT entity_a_id, entity_b_id FROM entity_relationships
		WHERE relationship_type = ?
		  AND (entity_a_id IN (` + ph + `) OR entity_b_id IN (` + ph + `))`
	args := []any{types.RelSimilarTo}
	for _, id := range entityIDs {
		args = append(args, id)
	}
	for _, id := range entityIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	inFrontier := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		inFrontier[id] = true
	}

	type edge struct{ from, to string }
	var edges []edge
	neighborIDs := map[string]bool{}
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if inFrontier[a] {
			edges = append(edges, edge{from: a, to: b})
			neighborIDs[b] = true
		}
		if inFrontier[b] {
			edges = append(edges, edge{from: b, to: a})
			neighborIDs[a] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	if len(neighborIDs) == 0 {
		return map[string][]types.Entity{}, nil
	}

	ids := make([]string, 0, len(neighborIDs))
	for id := range neighborIDs {
		ids = append(ids, id)
	}
	entities, err := s.entitiesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string][]types.Entity)
	for _, e := range edges {
		if entity, ok := entities[e.to]; ok {
			adjacency[e.from] = append(adjacency[e.from], entity)
		}
	}
	return adjacency, nil
}

func (s *Store) entitiesByID(ctx context.Context, ids []string) (map[string]types.Entity, error) {
	query := `
		SELECT id, entity_name, entity_type, category, created_at
		FROM fact_entities WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := make(map[string]types.Entity, len(ids))
	for rows.Next() {
		var e types.Entity
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entities[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
