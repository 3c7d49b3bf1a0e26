package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DepartmentsTTL bounds how long a department list is reused.
const DepartmentsTTL = 6 * time.Hour

// ErrLockHeld is returned when another scraper instance holds the lock.
var ErrLockHeld = errors.New("lock is held by another owner")

// releaseScript deletes the lock only if it still carries our token.
// KEYS[1] = lock key, ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to Redis. Keys are namespaced by prefix, typically the
// retailer brand and location.
func NewClient(addr, password string, db int, prefix string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) key(parts ...string) string {
	k := "scraper:" + c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Lock is a held distributed lock.
type Lock struct {
	client *Client
	key    string
	token  string
}

// AcquireLock takes the named lock for ttl, or returns ErrLockHeld.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := c.key("lock", name)
	token := uuid.New().String()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: c, key: key, token: token}, nil
}

// Release drops the lock if we still own it.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// GetDepartments returns the cached department slugs, or nil on a miss.
func (c *Client) GetDepartments(ctx context.Context) ([]string, error) {
	departments, err := c.rdb.LRange(ctx, c.key("departments"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read departments: %w", err)
	}
	if len(departments) == 0 {
		return nil, nil
	}
	return departments, nil
}

// SetDepartments replaces the cached department slugs.
func (c *Client) SetDepartments(ctx context.Context, departments []string) error {
	key := c.key("departments")
	values := make([]interface{}, len(departments))
	for i, d := range departments {
		values[i] = d
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, DepartmentsTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SaveLastPass stores the summary of the latest pass as JSON.
func (c *Client) SaveLastPass(ctx context.Context, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal pass summary: %w", err)
	}
	return c.rdb.Set(ctx, c.key("last_pass"), data, 0).Err()
}

// LoadLastPass decodes the stored summary into dst. It reports false when no
// pass has been recorded.
func (c *Client) LoadLastPass(ctx context.Context, dst interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, c.key("last_pass")).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode pass summary: %w", err)
	}
	return true, nil
}
