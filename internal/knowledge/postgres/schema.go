package postgres

// Schema creates the knowledge graph tables. Entities are shared across
// users and unique on (entity_name, entity_type); per-user facts hang off
// them via user_fact_relationships with a composite primary key so a user
// holds at most one fact per (entity, relationship_type). Entity-to-entity
// edges live in entity_relationships.
const Schema = `
CREATE TABLE IF NOT EXISTS fact_entities (
    id          UUID PRIMARY KEY,
    entity_name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (entity_name, entity_type)
);

CREATE TABLE IF NOT EXISTS user_fact_relationships (
    user_id           TEXT NOT NULL,
    entity_id         UUID NOT NULL REFERENCES fact_entities(id),
    relationship_type TEXT NOT NULL,
    confidence        DOUBLE PRECISION NOT NULL,
    emotional_context TEXT NOT NULL DEFAULT '',
    last_mentioned    TIMESTAMPTZ NOT NULL,
    mention_count     INTEGER NOT NULL DEFAULT 1,
    superseded_by     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (user_id, entity_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS entity_relationships (
    entity_a_id       UUID NOT NULL REFERENCES fact_entities(id),
    entity_b_id       UUID NOT NULL REFERENCES fact_entities(id),
    relationship_type TEXT NOT NULL,
    weight            DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (entity_a_id, entity_b_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_user_facts_user
    ON user_fact_relationships (user_id, confidence DESC);
CREATE INDEX IF NOT EXISTS idx_fact_entities_type
    ON fact_entities (entity_type);
CREATE INDEX IF NOT EXISTS idx_entity_rel_a
    ON entity_relationships (entity_a_id);
`
