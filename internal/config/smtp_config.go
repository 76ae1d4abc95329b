package config

import "time"

type SmtpConfig interface {
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetSmtpFrom() string
	GetSmtpTimeout() time.Duration
}

// GetSmtpHost returns an empty string when mail delivery is not configured.
func (c *mainConfig) GetSmtpHost() string {
	return c.str("smtp_host", "")
}

func (c *mainConfig) GetSmtpPort() string {
	return c.str("smtp_port", "587")
}

func (c *mainConfig) GetSmtpAccount() string {
	return c.str("smtp_account", "")
}

func (c *mainConfig) GetSmtpPassword() string {
	return c.str("smtp_password", "")
}

func (c *mainConfig) GetSmtpFrom() string {
	return c.str("smtp_from", c.GetSmtpAccount())
}

// GetSmtpTimeout bounds a single delivery, connection included.
func (c *mainConfig) GetSmtpTimeout() time.Duration {
	return c.duration("smtp_timeout", 10*time.Second)
}
