package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dokan/internal/domain"
	"dokan/internal/session"
)

const keyPrefix = "dokan:profile:"

type redisSnapshot struct {
	Profile      domain.UserProfile   `json:"profile"`
	Transactions []domain.Transaction `json:"transactions"`
	PushedAt     time.Time            `json:"pushed_at"`
}

// RedisMirror stores the latest snapshot of each profile under one key.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMirror(addr string, password string, db int) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMirror{client: client}
}

func (c *RedisMirror) Name() string { return "redis" }

func (c *RedisMirror) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMirror) Close() error {
	return c.client.Close()
}

func (c *RedisMirror) Push(ctx context.Context, st session.State) error {
	payload, err := json.Marshal(redisSnapshot{
		Profile:      st.Profile,
		Transactions: st.Transactions,
		PushedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(st.Profile.ID), payload, c.ttl).Err()
}

// Load reads back the mirrored snapshot; ok is false when nothing was pushed.
func (c *RedisMirror) Load(ctx context.Context, profileID string) (session.State, bool, error) {
	val, err := c.client.Get(ctx, Key(profileID)).Result()
	if errors.Is(err, redis.Nil) {
		return session.State{}, false, nil
	}
	if err != nil {
		return session.State{}, false, err
	}

	var snap redisSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return session.State{}, false, domain.CorruptState(err)
	}
	st := session.Empty(snap.Profile)
	if snap.Transactions != nil {
		st.Transactions = snap.Transactions
	}
	return st, true, nil
}

func Key(profileID string) string {
	return keyPrefix + profileID
}
