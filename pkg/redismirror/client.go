// Package redismirror gives other replicas best-effort visibility into
// one dispatcher's seat inventory. The mirror is never authoritative:
// SeatStore remains the source of truth for claim/release, and every
// mirrored row carries a TTL so a crashed replica's seats eventually
// disappear from observability views instead of lingering forever.
package redismirror

import (
	"context"
	"fmt"

	"proxysharing/pkg/config"

	"github.com/go-redis/redis/v8"
)

// Client wraps a go-redis client for the mirror's own connection
// lifecycle, independent of any other Redis consumer in the process.
type Client struct {
	client *redis.Client
}

// NewClient dials Redis using the shared Redis config section. A blank
// Addr is not an error here — callers that want to run without a
// mirror should simply not construct a Client.
func NewClient(cfg *config.Config) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redismirror: connect: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
