package config

import "time"

type ActionTokenConfig interface {
	GetActivationTokenTTL() time.Duration
	GetPasswordResetTokenTTL() time.Duration
}

func (c *mainConfig) GetActivationTokenTTL() time.Duration {
	return c.duration("activation_token_ttl", 24*time.Hour)
}

func (c *mainConfig) GetPasswordResetTokenTTL() time.Duration {
	return c.duration("password_reset_token_ttl", 1*time.Hour)
}
