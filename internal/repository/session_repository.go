package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/employee-portal/internal/domain"
)

const (
	sessionKeyPrefix = "employee-portal:session:"
	failureKeyPrefix = "employee-portal:auth-failure:"
)

// SessionRepository stores login sessions and one-shot authentication failures.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Update(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	SaveFailure(ctx context.Context, key string, failure domain.AuthFailure, ttl time.Duration) error
	PopFailure(ctx context.Context, key string) (*domain.AuthFailure, error)
}

type sessionRepository struct {
	client redis.UniversalClient
}

// NewSessionRepository returns a Redis-backed implementation.
func NewSessionRepository(client redis.UniversalClient) SessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err()
}

// Update rewrites the session keeping its remaining lifetime.
func (r *sessionRepository) Update(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, sessionKeyPrefix+session.ID, payload, redis.KeepTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (r *sessionRepository) SaveFailure(ctx context.Context, key string, failure domain.AuthFailure, ttl time.Duration) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, failureKeyPrefix+key, payload, ttl).Err()
}

// PopFailure returns and removes the stored failure; nil when there is none.
func (r *sessionRepository) PopFailure(ctx context.Context, key string) (*domain.AuthFailure, error) {
	payload, err := r.client.GetDel(ctx, failureKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var failure domain.AuthFailure
	if err := json.Unmarshal(payload, &failure); err != nil {
		return nil, fmt.Errorf("decode auth failure: %w", err)
	}
	return &failure, nil
}
