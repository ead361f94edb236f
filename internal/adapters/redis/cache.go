package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

// Cache is a read-through cache for single events. Every invalidation bumps a per-event
// generation, and a fill is written only if the generation it read is still current, so
// a slow reader cannot put back a snapshot older than the last invalidation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func eventKey(id uuid.UUID) string {
	return "event:" + id.String()
}

func genKey(id uuid.UUID) string {
	return "event:gen:" + id.String()
}

// KEYS[1] event, KEYS[2] generation; ARGV[1] payload, ARGV[2] expected generation, ARGV[3] ttl ms.
var fillIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// GetEvent returns a cached event, or nil on a miss, together with the generation a
// later SetEvent must present.
func (c *Cache) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, int64, error) {
	vals, err := c.client.MGet(ctx, eventKey(id), genKey(id)).Result()
	if err != nil {
		return nil, 0, err
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, err
		}
	}
	s, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}
	var event domain.Event
	if err := json.Unmarshal([]byte(s), &event); err != nil {
		return nil, gen, err
	}
	return &event, gen, nil
}

// SetEvent fills the cache unless the event was invalidated after gen was read.
func (c *Cache) SetEvent(ctx context.Context, event *domain.Event, gen int64) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	keys := []string{eventKey(event.ID), genKey(event.ID)}
	return fillIfCurrent.Run(ctx, c.client, keys, data, strconv.FormatInt(gen, 10), c.ttl.Milliseconds()).Err()
}

func (c *Cache) InvalidateEvent(ctx context.Context, id uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.Del(ctx, eventKey(id))
		return nil
	})
	return err
}
