package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/arkadyne/authrelay/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTLP LogFormat = "otlp"
)

// TokenStorageType represents the storage backends supported for the token.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeRedis   TokenStorageType = "redis"
	TokenStorageTypeBolt    TokenStorageType = "bolt"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 4000
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigAuthStorage      = TokenStorageTypeFile
	DefaultConfigHeaderName       = "Authorization"
	DefaultConfigHeaderScheme     = "Bearer "
	DefaultConfigRefreshTokenPath = "access_token"
	DefaultConfigRefreshTimeout   = 30 * time.Second
	DefaultConfigRedisKey         = "authrelay:token"
)

// keyringService identifies this application's entries in the OS keyring.
const keyringService = "authrelay-token"

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds upstream API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// AuthConfig describes where the token lives and how it is attached to
// outgoing requests.
type AuthConfig struct {
	// Storage configuration - where the stored token comes from
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring redis bolt"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
	RedisAddr   string `json:"redis_addr,omitempty"`   // For redis storage: server address
	RedisKey    string `json:"redis_key,omitempty"`    // For redis storage: key holding the token
	BoltPath    string `json:"bolt_path,omitempty"`    // For bolt storage: database file path

	// How the token is rendered onto outgoing requests
	HeaderName   string `json:"header_name"`
	HeaderScheme string `json:"header_scheme"`
}

// RefreshConfig describes the call that exchanges credentials for a new
// token.
type RefreshConfig struct {
	// URL of the token endpoint.
	URL string `json:"url" validate:"required,url"`

	// TokenPath is the JSON path of the new token in the endpoint response.
	TokenPath string `json:"token_path"`

	// Payload is the static JSON body sent to the token endpoint. Values
	// referencing sensitive credentials should arrive via environment
	// variables, not the config file.
	Payload map[string]any `json:"payload,omitempty"`

	// Timeout bounds the refresh call.
	Timeout time.Duration `json:"timeout"`
}

// NewTokenStore creates a Store from the authentication configuration.
// The returned closer releases backend resources (bolt file handle, redis
// connection pool) and may be nil for backends without any.
func (a *AuthConfig) NewTokenStore() (tokenstore.Store, io.Closer, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		store, err := tokenstore.NewFileStore(a.File)
		return store, nil, err
	case TokenStorageTypeEnv:
		store, err := tokenstore.NewEnvStore(a.EnvKey)
		return store, nil, err
	case TokenStorageTypeKeyring:
		store, err := tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
		return store, nil, err
	case TokenStorageTypeRedis:
		client := redis.NewClient(&redis.Options{Addr: a.RedisAddr})
		store, err := tokenstore.NewRedisStore(client, a.RedisKey)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client, nil
	case TokenStorageTypeBolt:
		store, err := tokenstore.NewBoltStore(a.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otlp"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Upstream  UpstreamConfig `json:"upstream"`
	Auth      AuthConfig     `json:"auth"`
	Refresh   RefreshConfig  `json:"refresh"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.HeaderName == "" {
		c.Auth.HeaderName = DefaultConfigHeaderName
	}
	if c.Auth.HeaderScheme == "" {
		c.Auth.HeaderScheme = DefaultConfigHeaderScheme
	}
	if c.Refresh.TokenPath == "" {
		c.Refresh.TokenPath = DefaultConfigRefreshTokenPath
	}
	if c.Refresh.Timeout == 0 {
		c.Refresh.Timeout = DefaultConfigRefreshTimeout
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "authrelay", "token")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeRedis:
		if c.Auth.RedisKey == "" {
			c.Auth.RedisKey = DefaultConfigRedisKey
		}
	case TokenStorageTypeEnv, TokenStorageTypeBolt:
		// env_key and bolt_path must be explicitly configured
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Refresh writes the renewed token back, so storage must be writable
	if c.Auth.Storage == TokenStorageTypeEnv {
		return errors.New("token refresh requires writable storage, env is read-only")
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case TokenStorageTypeRedis:
		if c.Auth.RedisAddr == "" {
			return errors.New("redis_addr required for redis storage")
		}
	case TokenStorageTypeBolt:
		if c.Auth.BoltPath == "" {
			return errors.New("bolt_path required for bolt storage")
		}
	}

	return nil
}
