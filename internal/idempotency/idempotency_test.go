package idempotency_test

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/robertarktes/event-ticketing/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	data map[string]redisadapter.IdempResponse
	ttl  time.Duration
}

func (m *mapStore) Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *mapStore) Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m.data[key] = resp
	m.ttl = ttl
	return nil
}

func (m *mapStore) Begin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = redisadapter.IdempResponse{Pending: true}
	m.ttl = ttl
	return true, nil
}

func (m *mapStore) Release(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestIdempotency_GetSet(t *testing.T) {
	store := &mapStore{data: map[string]redisadapter.IdempResponse{}}
	idemp := idempotency.NewIdempotency(store, time.Hour)
	ctx := context.Background()

	got, err := idemp.Get(ctx, "missing-key-0000001")
	require.NoError(t, err)
	assert.Nil(t, got)

	resp := idempotency.Response{Status: 201, ContentType: "application/json", Result: []byte(`{"ok":true}`)}
	require.NoError(t, idemp.Set(ctx, "key-000000000000001", resp))
	assert.Equal(t, time.Hour, store.ttl)

	got, err = idemp.Get(ctx, "key-000000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp, *got)
}

func TestIdempotency_BeginClaimsOnce(t *testing.T) {
	store := &mapStore{data: map[string]redisadapter.IdempResponse{}}
	idemp := idempotency.NewIdempotency(store, time.Hour)
	ctx := context.Background()
	key := "key-000000000000002"

	ok, err := idemp.Begin(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, idempotency.InFlightTTL, store.ttl)

	ok, err = idemp.Begin(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := idemp.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Pending)

	require.NoError(t, idemp.Release(ctx, key))
	ok, err = idemp.Begin(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
