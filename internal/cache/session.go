package cache

import (
	"context"
	"fmt"
	"time"
)

// SessionTTL is how long an idle session context survives in the cache.
const SessionTTL = time.Hour

// SessionContext is the typed per-session state kept in the cache while a
// conversation is active. Explicit optional fields replace the arbitrary
// string map the session hash used to hold.
type SessionContext struct {
	UserID         string
	ConversationID string
	StartedAt      time.Time

	// CurrentTopic is optional free text set by the conversation layer.
	CurrentTopic string
}

// SessionStore persists SessionContext records as hash fields with a
// sliding SessionTTL expiry.
type SessionStore struct {
	cache Cache
}

// NewSessionStore wraps the given cache with typed session accessors.
func NewSessionStore(c Cache) *SessionStore {
	return &SessionStore{cache: c}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Put stores the session context and resets its TTL.
func (s *SessionStore) Put(ctx context.Context, sessionID string, sc SessionContext) error {
	fields := map[string]string{
		"user_id":         sc.UserID,
		"conversation_id": sc.ConversationID,
		"started_at":      sc.StartedAt.UTC().Format(time.RFC3339),
	}
	if sc.CurrentTopic != "" {
		fields["current_topic"] = sc.CurrentTopic
	}

	key := sessionKey(sessionID)
	if err := s.cache.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("session store: put %q: %w", sessionID, err)
	}
	if err := s.cache.Expire(ctx, key, SessionTTL); err != nil {
		return fmt.Errorf("session store: expire %q: %w", sessionID, err)
	}
	return nil
}

// Get returns the session context, or (nil, nil) when no session exists.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*SessionContext, error) {
	fields, err := s.cache.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session store: get %q: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sc := &SessionContext{
		UserID:         fields["user_id"],
		ConversationID: fields["conversation_id"],
		CurrentTopic:   fields["current_topic"],
	}
	if raw := fields["started_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			sc.StartedAt = t
		}
	}
	return sc, nil
}

// Touch extends the session TTL without modifying fields.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	return s.cache.Expire(ctx, sessionKey(sessionID), SessionTTL)
}
