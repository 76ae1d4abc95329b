package config

import "strings"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type StorageConfig interface {
	GetAuthorizationStore() string
	GetActionTokenStore() string
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
	GetRedisURL() string
}

// GetAuthorizationStore is one of StoreMemory or StorePostgres.
func (c *mainConfig) GetAuthorizationStore() string {
	return strings.ToLower(c.str("authorization_store", StoreMemory))
}

// GetActionTokenStore is one of StoreMemory, StorePostgres or StoreRedis.
func (c *mainConfig) GetActionTokenStore() string {
	return strings.ToLower(c.str("action_token_store", StoreMemory))
}

func (c *mainConfig) GetDatabaseURL() string {
	return c.str("database_url", "")
}

func (c *mainConfig) GetDatabaseMaxConns() int {
	return c.integer("database_max_conns", 10)
}

func (c *mainConfig) GetRedisURL() string {
	return c.str("redis_url", "localhost:6379")
}
