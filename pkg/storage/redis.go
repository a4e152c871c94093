package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "floodcast:forecast:"

// RedisStore implements Store on Redis, for deployments running more than
// one forecaster instance behind a load balancer. Snapshots expire after the
// configured TTL so a dead tracker cannot serve forecasts forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection. A zero ttl
// defaults to two hours, twice the slowest expected tracker interval.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("storage: redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("storage: redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 2 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Put stores a snapshot under "floodcast:forecast:{site}" with the
// configured TTL.
func (r *RedisStore) Put(ctx context.Context, snapshot Snapshot) error {
	if snapshot.Site == "" {
		return errors.New("storage: snapshot site cannot be empty")
	}
	if err := validateSiteCode(snapshot.Site); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("storage: marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+snapshot.Site, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storage: store snapshot: %w", err)
	}

	return nil
}

// GetLatest retrieves the snapshot for a site. An expired or absent key is
// reported as found=false, not as an error.
func (r *RedisStore) GetLatest(ctx context.Context, site string) (Snapshot, bool, error) {
	if site == "" {
		return Snapshot{}, false, errors.New("storage: site cannot be empty")
	}

	data, err := r.client.Get(ctx, redisKeyPrefix+site).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("storage: get snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("storage: unmarshal snapshot: %w", err)
	}

	return snapshot, true, nil
}

// Ping checks the connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// validateSiteCode rejects site codes that would break the key scheme.
// Hub'Eau codes are alphanumeric (e.g. W3150010).
func validateSiteCode(site string) error {
	for _, c := range site {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("storage: invalid site code %q", site)
		}
	}
	return nil
}
