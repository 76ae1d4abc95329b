package config

import (
	"strings"
)

func (c *mainConfig) GetPort() string {
	port := c.str("port", "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (c *mainConfig) GetAppName() string {
	return c.str("app_name", "Go Token Authority")
}

func (c *mainConfig) GetEnv() string {
	return strings.ToUpper(c.str("env", "DEV"))
}

// GetBaseURL returns the public URL of the service (e.g., "https://auth.example.com").
// Activation and password reset links are built from it.
func (c *mainConfig) GetBaseURL() string {
	return strings.TrimSuffix(c.str("base_url", "http://localhost:8080"), "/")
}

func (c *mainConfig) GetLogLevel() string {
	return c.str("log_level", "info")
}
