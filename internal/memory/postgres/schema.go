// Package postgres provides the pgvector-backed memory store. Each record
// carries three named 384-dimensional embeddings searchable independently.
package postgres

// Schema contains the SQL statements to create the memory schema.
// The payload column names (user_id, content, timestamp, emotion_label) are
// a frozen contract shared with the external turn logger and the enrichment
// worker; renaming them breaks writers silently.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

-- Memory records: one row per conversation turn, one logical collection
-- per conversational agent.
CREATE TABLE IF NOT EXISTS memory_records (
    id TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,

    -- Named embeddings (frozen at 384 dimensions by the embedding model).
    content_vec vector(384),
    emotion_vec vector(384),
    semantic_vec vector(384),

    -- Emotion annotation from the emotion service at write time.
    emotion_label TEXT,
    emotion_intensity REAL NOT NULL DEFAULT 0,

    -- Conversation-turn time, stored as unix seconds.
    timestamp BIGINT NOT NULL,

    session_id TEXT,

    -- Enrichment tag maintained by the external worker. The router only
    -- ever reads it.
    status TEXT NOT NULL DEFAULT 'pending',

    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memory_records_user_time
    ON memory_records(collection, user_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_memory_records_session
    ON memory_records(collection, user_id, session_id, timestamp);

-- Approximate-nearest-neighbour indexes, one per named vector.
CREATE INDEX IF NOT EXISTS idx_memory_content_cosine
    ON memory_records USING ivfflat (content_vec vector_cosine_ops) WITH (lists = 100);
CREATE INDEX IF NOT EXISTS idx_memory_emotion_cosine
    ON memory_records USING ivfflat (emotion_vec vector_cosine_ops) WITH (lists = 100);
CREATE INDEX IF NOT EXISTS idx_memory_semantic_cosine
    ON memory_records USING ivfflat (semantic_vec vector_cosine_ops) WITH (lists = 100);
`
