package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is stripped from environment variables before they are matched to keys,
// so TOKEN_AUTHORITY_ACCESS_TOKEN_EXPIRY sets access_token_expiry.
const DefaultEnvPrefix = "TOKEN_AUTHORITY_"

type Config interface {
	EnvConfig
	OAuthConfig
	ActionTokenConfig
	StorageConfig
	SmtpConfig
	IdentityProviderConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	k *koanf.Koanf
}

var _ Config = (*mainConfig)(nil)

type loadOptions struct {
	envPrefix string
	filePath  string
	values    map[string]any
}

// Option configures how New loads values.
type Option func(*loadOptions)

// WithConfigFile loads a YAML file before the environment is applied.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.filePath = path
	}
}

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithValues loads fixed values last, taking priority over file and environment.
func WithValues(values map[string]any) Option {
	return func(o *loadOptions) {
		o.values = values
	}
}

// New loads configuration from the optional YAML file and then the environment.
// Keys that are never set fall back to the defaults in the getters.
func New(options ...Option) (Config, error) {
	opts := loadOptions{envPrefix: DefaultEnvPrefix}
	for _, opt := range options {
		opt(&opts)
	}

	k := koanf.New(".")

	if opts.filePath != "" {
		if err := k.Load(file.Provider(opts.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("[config.New] load file %s: %w", opts.filePath, err)
		}
	}

	envTransformer := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, opts.envPrefix))
	}
	if err := k.Load(env.Provider(opts.envPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("[config.New] load env: %w", err)
	}

	if opts.values != nil {
		if err := k.Load(mapProvider(opts.values), nil); err != nil {
			return nil, fmt.Errorf("[config.New] load values: %w", err)
		}
	}

	return &mainConfig{k: k}, nil
}

func (c *mainConfig) str(key, defaultValue string) string {
	if v := c.k.String(key); v != "" {
		return v
	}
	return defaultValue
}

func (c *mainConfig) integer(key string, defaultValue int) int {
	if !c.k.Exists(key) {
		return defaultValue
	}
	return c.k.Int(key)
}

func (c *mainConfig) duration(key string, defaultValue time.Duration) time.Duration {
	if d := c.k.Duration(key); d > 0 {
		return d
	}
	return defaultValue
}

// mapProvider feeds a plain map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
