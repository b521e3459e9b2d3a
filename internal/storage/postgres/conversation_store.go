package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
)

// Ensure *ConversationStore implements storage.ConversationStore at compile time.
var _ storage.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements storage.ConversationStore on the same
// database as the fact store. Conversations and messages are plain
// bookkeeping rows; messages additionally carry the turn's embedding so the
// dialogue itself stays semantically searchable.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore wraps an existing database handle (typically
// FactStore.GetDB()) with conversation bookkeeping.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// CreateConversation records a new conversation session and returns its
// store-assigned identifier.
func (s *ConversationStore) CreateConversation(ctx context.Context, userID, sessionID string, metadata map[string]interface{}) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if sessionID == "" {
		return "", fmt.Errorf("%w: session ID is required", storage.ErrInvalidInput)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return "", err
	}

	const query = `
		INSERT INTO conversations (user_id, session_id, metadata)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id string
	if err := s.db.QueryRowContext(ctx, query, userID, sessionID, metadataJSON).Scan(&id); err != nil {
		return "", fmt.Errorf("%w: create conversation: %v", storage.ErrUnavailable, err)
	}

	return id, nil
}

// AddMessage appends a message to a conversation and returns its identity.
func (s *ConversationStore) AddMessage(ctx context.Context, msg *storage.NewMessage) (*storage.MessageRecord, error) {
	if msg == nil {
		return nil, storage.ErrInvalidInput
	}
	if msg.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation ID is required", storage.ErrInvalidInput)
	}
	if msg.Role == "" {
		return nil, fmt.Errorf("%w: message role is required", storage.ErrInvalidInput)
	}
	if msg.Content == "" {
		return nil, fmt.Errorf("%w: message content is required", storage.ErrInvalidInput)
	}

	metadataJSON, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return nil, err
	}

	var embedding interface{}
	if len(msg.Embedding) > 0 {
		embedding = pgvector.NewVector(msg.Embedding)
	}

	const query = `
		INSERT INTO messages (conversation_id, role, content, audio_url, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var id string
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, query,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		nullableString(msg.AudioURL),
		embedding,
		metadataJSON,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: add message: %v", storage.ErrUnavailable, err)
	}

	return &storage.MessageRecord{
		ID:        id,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// marshalMetadata encodes an optional metadata map as JSON, mapping nil to
// SQL NULL.
func marshalMetadata(metadata map[string]interface{}) (interface{}, error) {
	if metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal metadata: %v", storage.ErrInvalidInput, err)
	}
	return raw, nil
}
