package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

const sessionKeyPrefix = "session:"

// SessionRepository stores idle-session records in Redis. Each record lives
// under the access token ID with a sliding TTL; when the TTL lapses the user
// is considered idle and the token is rejected.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(client *redis.Client, idleTTL time.Duration) *SessionRepository {
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	return &SessionRepository{client: client, ttl: idleTTL}
}

// Create stores a fresh session record for the token ID.
func (r *SessionRepository) Create(ctx context.Context, tokenID string, session models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+tokenID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Touch refreshes the idle TTL. It returns false when the session no longer
// exists, meaning the user sat idle past the timeout.
func (r *SessionRepository) Touch(ctx context.Context, tokenID string) (bool, error) {
	ok, err := r.client.Expire(ctx, sessionKeyPrefix+tokenID, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	return ok, nil
}

// Delete drops the session record, ending the login.
func (r *SessionRepository) Delete(ctx context.Context, tokenID string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
