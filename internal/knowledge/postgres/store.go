// Package postgres implements the knowledge graph store on PostgreSQL
// via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// Ensure *Store implements the full graph contract at compile time.
var _ knowledge.Store = (*Store)(nil)

// factColumns is the canonical SELECT column list for user fact reads.
// It must match the scan order in scanFact.
const factColumns = `
	f.user_id, f.entity_id, e.entity_name, e.entity_type,
	f.relationship_type, f.confidence, f.emotional_context,
	f.last_mentioned, f.mention_count, f.superseded_by
`

// discoveryCandidateCap bounds how many same-type entities are compared
// for similar_to discovery on each fact write.
const discoveryCandidateCap = 200

// Store is the PostgreSQL-backed knowledge graph.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to PostgreSQL and applies the graph schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", knowledge.ErrBackendUnavailable)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, logger: log.WithPrefix("knowledge")}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreFact upserts the entity and the fact inside one transaction,
// resolving contradictions against opposing relationship types before the
// fact row is written. similar_to discovery runs after commit so a
// discovery failure can never roll back an accepted fact.
func (s *Store) StoreFact(ctx context.Context, input knowledge.FactInput) error {
	if err := input.Validate(); err != nil {
		return fmt.Errorf("postgres: StoreFact: %w", err)
	}
	name := knowledge.NormalizeEntityName(input.EntityName)
	mentionedAt := input.At()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: StoreFact: begin: %w", err)
	}
	defer tx.Rollback()

	entityID, err := upsertEntity(ctx, tx, name, input.EntityType)
	if err != nil {
		return fmt.Errorf("postgres: StoreFact: %w", err)
	}

	supersededBy, err := resolveOpposing(ctx, tx, input, entityID, mentionedAt)
	if err != nil {
		return fmt.Errorf("postgres: StoreFact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_fact_relationships
			(user_id, entity_id, relationship_type, confidence,
			 emotional_context, last_mentioned, mention_count, superseded_by)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		ON CONFLICT (user_id, entity_id, relationship_type) DO UPDATE SET
			confidence        = GREATEST(user_fact_relationships.confidence, EXCLUDED.confidence),
			mention_count     = user_fact_relationships.mention_count + 1,
			last_mentioned    = GREATEST(user_fact_relationships.last_mentioned, EXCLUDED.last_mentioned),
			emotional_context = CASE WHEN EXCLUDED.emotional_context <> ''
				THEN EXCLUDED.emotional_context
				ELSE user_fact_relationships.emotional_context END,
			superseded_by     = EXCLUDED.superseded_by`,
		input.UserID, entityID, input.RelationshipType, input.Confidence,
		input.EmotionalContext, mentionedAt, supersededBy)
	if err != nil {
		return fmt.Errorf("postgres: StoreFact: upsert fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: StoreFact: commit: %w", err)
	}

	if err := s.discoverSimilar(ctx, entityID, name, input.EntityType); err != nil {
		s.logger.Warn("similar_to discovery failed", "entity", name, "err", err)
	}
	return nil
}

// upsertEntity inserts the entity if missing and returns its id. The no-op
// DO UPDATE makes RETURNING yield the id on the conflict path too.
func upsertEntity(ctx context.Context, tx *sql.Tx, name, entityType string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO fact_entities (id, entity_name, entity_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_name, entity_type) DO UPDATE SET entity_name = EXCLUDED.entity_name
		RETURNING id`,
		uuid.NewString(), name, entityType).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert entity: %w", err)
	}
	return id, nil
}

// resolveOpposing checks the user's live facts on the same entity whose
// relationship type opposes the incoming one. Each contradiction resolves
// by confidence with a recency tie-break: a losing existing fact is
// flagged superseded in place, and a losing new fact is stored with
// superseded_by set so neither side of the contradiction is dropped.
func resolveOpposing(ctx context.Context, tx *sql.Tx, input knowledge.FactInput, entityID string, mentionedAt time.Time) (string, error) {
	opposing := knowledge.OpposingTypes(input.RelationshipType)
	if len(opposing) == 0 {
		return "", nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT relationship_type, confidence, last_mentioned
		FROM user_fact_relationships
		WHERE user_id = $1 AND entity_id = $2
		  AND relationship_type = ANY($3) AND superseded_by = ''`,
		input.UserID, entityID, pq.Array(opposing))
	if err != nil {
		return "", fmt.Errorf("query opposing facts: %w", err)
	}
	defer rows.Close()

	var existing []types.Fact
	for rows.Next() {
		var f types.Fact
		if err := rows.Scan(&f.RelationshipType, &f.Confidence, &f.LastMentioned); err != nil {
			return "", fmt.Errorf("scan opposing fact: %w", err)
		}
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
				SET superseded_by = $1
				WHERE user_id = $2 AND entity_id = $3 AND relationship_type = $4`,
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

// discoverSimilar links the entity to same-type entities whose names are
// trigram-similar. Best effort: discovery edges enrich traversal but are
// never load-bearing for fact storage.
func (s *Store) discoverSimilar(ctx context.Context, entityID, name, entityType string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_name FROM fact_entities
		WHERE entity_type = $1 AND id <> $2
		LIMIT $3`,
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
			INSERT INTO entity_relationships (entity_a_id, entity_b_id, relationship_type, weight)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_a_id, entity_b_id, relationship_type) DO UPDATE SET
				weight = GREATEST(entity_relationships.weight, EXCLUDED.weight)`,
			a, b, types.RelSimilarTo, m.score)
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
		return nil, fmt.Errorf("postgres: GetUserFacts: empty user id: %w", knowledge.ErrInvalidInput)
	}
	filter.Normalize()

	query := `
		SELECT ` + factColumns + `
		FROM user_fact_relationships f
		JOIN fact_entities e ON e.id = f.entity_id
		WHERE f.user_id = $1 AND f.confidence >= $2`
	args := []any{userID, filter.MinConfidence}

	if !filter.IncludeSuperseded {
		query += ` AND f.superseded_by = ''`
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND e.entity_type = $%d", len(args))
	}
	if len(filter.RelationshipTypes) > 0 {
		args = append(args, pq.Array(filter.RelationshipTypes))
		query += fmt.Sprintf(" AND f.relationship_type = ANY($%d)", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY f.confidence DESC, f.last_mentioned DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: GetUserFacts: %w", err)
	}
	defer rows.Close()

	var facts []types.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: GetUserFacts: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: GetUserFacts: %w", err)
	}
	return facts, nil
}

// GetRelatedEntities walks similar_to edges outward from the named entity,
// one adjacency query per hop level.
func (s *Store) GetRelatedEntities(ctx context.Context, entityName string, maxHops int) ([]types.RelatedEntity, error) {
	name := knowledge.NormalizeEntityName(entityName)
	if name == "" {
		return nil, fmt.Errorf("postgres: GetRelatedEntities: empty entity name: %w", knowledge.ErrInvalidInput)
	}

	var seed types.Entity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entity_name, entity_type, category, created_at
		FROM fact_entities WHERE entity_name = $1
		ORDER BY created_at LIMIT 1`, name).
		Scan(&seed.ID, &seed.Name, &seed.Type, &seed.Category, &seed.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("postgres: GetRelatedEntities %q: %w", entityName, knowledge.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: GetRelatedEntities: %w", err)
	}

	related, err := knowledge.TraverseSimilar(ctx, seed, maxHops, s.neighborEntities)
	if err != nil {
		return nil, fmt.Errorf("postgres: GetRelatedEntities: %w", err)
	}
	return related, nil
}

// neighborEntities fetches similar_to adjacency for one traversal level.
// Edges are stored once with ordered ids, so both columns are matched.
func (s *Store) neighborEntities(ctx context.Context, entityIDs []string) (map[string][]types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_a_id, entity_b_id FROM entity_relationships
		WHERE relationship_type = $1
		  AND (entity_a_id = ANY($2) OR entity_b_id = ANY($2))`,
		types.RelSimilarTo, pq.Array(entityIDs))
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_name, entity_type, category, created_at
		FROM fact_entities WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := make(map[string]types.Entity, len(ids))
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

func scanFact(rows *sql.Rows) (types.Fact, error) {
	var f types.Fact
	err := rows.Scan(&f.UserID, &f.EntityID, &f.EntityName, &f.EntityType,
		&f.RelationshipType, &f.Confidence, &f.EmotionalContext,
		&f.LastMentioned, &f.MentionCount, &f.SupersededBy)
	if err != nil {
		return types.Fact{}, fmt.Errorf("scan fact: %w", err)
	}
	return f, nil
}
