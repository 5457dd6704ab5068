package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/portal"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/crypto"
)

const (
	defaultCookiePrefix = "slotwatch:cookies:"
	// DefaultCookieTTL bounds how long a stored portal session is reused.
	DefaultCookieTTL = 12 * time.Hour
)

// RedisCookieStore keeps sealed portal cookies in Redis.
type RedisCookieStore struct {
	client *redis.Client
	sealer crypto.Sealer
	prefix string
	ttl    time.Duration
}

var _ portal.CookieStore = (*RedisCookieStore)(nil)

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisCookieStore creates a store. A nil sealer stores cookies unencrypted.
func NewRedisCookieStore(client *redis.Client, sealer crypto.Sealer, ttl time.Duration) *RedisCookieStore {
	if sealer == nil {
		sealer = crypto.PlainSealer{}
	}
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	return &RedisCookieStore{
		client: client,
		sealer: sealer,
		prefix: defaultCookiePrefix,
		ttl:    ttl,
	}
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// Save replaces the cookies stored under key.
func (s *RedisCookieStore) Save(ctx context.Context, key string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("seal cookies: %w", err)
	}
	return s.client.Set(ctx, s.prefix+key, sealed, s.ttl).Err()
}

// Load returns the cookies stored under key, or nil when none are stored.
func (s *RedisCookieStore) Load(ctx context.Context, key string) ([]*http.Cookie, error) {
	sealed, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		})
	}
	return cookies, nil
}

// Ping checks the Redis connection.
func (s *RedisCookieStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisCookieStore) Close() error {
	return s.client.Close()
}
