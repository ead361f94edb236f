package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/event-ticketing/internal/adapters/redis"
)

// MinKeyLength rejects keys too short to be unique per client.
const MinKeyLength = 16

// InFlightTTL bounds how long a claimed key blocks retries if its request never finishes.
const InFlightTTL = 30 * time.Second

type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Begin(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

// Response is a stored response. Pending marks a key whose first request is still running.
type Response struct {
	Status      int
	ContentType string
	Result      []byte
	Pending     bool
}

// Get returns what is stored under key, or nil if nothing is.
func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.store.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Result, Pending: stored.Pending}, nil
}

// Begin claims key for one request. Only the caller that gets true may run the request.
func (i *Idempotency) Begin(ctx context.Context, key string) (bool, error) {
	return i.store.Begin(ctx, key, InFlightTTL)
}

// Set stores the final response, replacing the in-flight claim.
func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
	}, i.ttl)
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.store.Release(ctx, key)
}
