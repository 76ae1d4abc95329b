// Package redis keeps action tokens in Redis.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient accepts either a redis:// (or rediss://) URL or a bare host:port, and pings the server.
func NewClient(ctx context.Context, address string) (*goredis.Client, error) {
	opts := &goredis.Options{Addr: address}
	if strings.HasPrefix(address, "redis://") || strings.HasPrefix(address, "rediss://") {
		parsed, err := goredis.ParseURL(address)
		if err != nil {
			return nil, fmt.Errorf("[redis.NewClient] parse url: %w", err)
		}
		opts = parsed
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redis.NewClient] ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
