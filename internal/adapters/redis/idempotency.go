package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is a stored response, or an in-flight marker when Pending is set.
type IdempResponse struct {
	Status      int
	ContentType string
	Result      []byte
	Pending     bool `json:",omitempty"`
}

func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp IdempResponse
	err = json.Unmarshal(val, &resp)
	return &resp, err
}

func (i *Idempotency) Set(ctx context.Context, key string, resp IdempResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, "idemp:"+key, data, ttl).Err()
}

// Begin claims key with an in-flight marker. It reports false when the key is already
// claimed or holds a stored response.
func (i *Idempotency) Begin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(IdempResponse{Pending: true})
	if err != nil {
		return false, err
	}
	return i.client.SetNX(ctx, "idemp:"+key, data, ttl).Result()
}

// Release drops the claim on key so the request can be retried.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.client.Del(ctx, "idemp:"+key).Err()
}
