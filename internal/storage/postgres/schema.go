package postgres

import "fmt"

// Schema returns the base DDL for the given embedding dimension. All
// statements are idempotent (IF NOT EXISTS) so the schema can be applied on
// every startup. The pgvector extension must already be enabled; the fact
// store enables it before applying this.
//
// Fact identifiers are store-assigned UUIDs. The ivfflat index accelerates
// cosine-distance ordering once the table has enough rows; below that
// Postgres falls back to a sequential scan, which is still correct.
func Schema(dimension int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS conversations (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	metadata   JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id);
CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations (session_id);

CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	audio_url       TEXT,
	embedding       vector(%[1]d),
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id);

CREATE TABLE IF NOT EXISTS memory_facts (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id           TEXT NOT NULL,
	fact_type         TEXT NOT NULL,
	content           TEXT NOT NULL,
	embedding         vector(%[1]d) NOT NULL,
	confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	access_count      INTEGER NOT NULL DEFAULT 0,
	last_accessed_at  TIMESTAMPTZ,
	source_message_id TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_memory_facts_user ON memory_facts (user_id);
CREATE INDEX IF NOT EXISTS idx_memory_facts_type ON memory_facts (user_id, fact_type);
CREATE INDEX IF NOT EXISTS idx_memory_facts_embedding
	ON memory_facts USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, dimension)
}
