package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Blob store backends.
const (
	BlobVercel = "vercel"
	BlobGCS    = "gcs"
	BlobLocal  = "local"
)

// Metadata store backends.
const (
	KVRest      = "rest"
	KVRedis     = "redis"
	KVSQLite    = "sqlite"
	KVFirestore = "firestore"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel string         `toml:"log_level"`
	Server   ServerConfig   `toml:"server"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Blob     BlobConfig     `toml:"blob"`
	KV       KVConfig       `toml:"kv"`
	Database DatabaseConfig `toml:"database"`
	Cron     CronConfig     `toml:"cron"`
	Dispatch DispatchConfig `toml:"dispatch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string  `toml:"host"`
	Port        int     `toml:"port"`
	CronSecret  string  `toml:"cron_secret"`
	TriggerRate float64 `toml:"trigger_rate"`
	MaxUploadMB int64   `toml:"max_upload_mb"`
}

// YouTubeConfig contains YouTube Data API OAuth2 credentials and upload defaults.
type YouTubeConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	RefreshToken  string `toml:"refresh_token"`
	CategoryID    string `toml:"category_id"`
	PrivacyStatus string `toml:"privacy_status"`
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	Backend   string `toml:"backend"`
	Token     string `toml:"token"`
	APIURL    string `toml:"api_url"`
	Bucket    string `toml:"bucket"`
	Dir       string `toml:"dir"`
	PublicURL string `toml:"public_url"`
}

// KVConfig selects and configures the metadata store.
type KVConfig struct {
	Backend    string `toml:"backend"`
	RESTURL    string `toml:"rest_url"`
	RESTToken  string `toml:"rest_token"`
	RedisURL   string `toml:"redis_url"`
	ProjectID  string `toml:"project_id"`
	Collection string `toml:"collection"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CronConfig controls the in-process daily trigger.
type CronConfig struct {
	Enabled bool   `toml:"enabled"`
	Spec    string `toml:"spec"`
}

// DispatchConfig contains dispatch loop settings.
type DispatchConfig struct {
	Prefix   string `toml:"prefix"`
	LeaseTTL string `toml:"lease_ttl"`
}

// LeaseDuration parses LeaseTTL, falling back to 30 minutes when unset or malformed.
func (d DispatchConfig) LeaseDuration() time.Duration {
	ttl, err := time.ParseDuration(d.LeaseTTL)
	if err != nil || ttl <= 0 {
		return 30 * time.Minute
	}
	return ttl
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxUploadBytes returns the multipart body limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 512 << 20
	}
	return s.MaxUploadMB << 20
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// DotEnvFiles are loaded into the process environment by [Load] when present.
var DotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads each existing file in paths without overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// Load builds the runtime configuration: defaults, then the file at path if it exists, then the environment.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(DotEnvFiles...); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides configuration values with environment variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"YOUTUBE_CLIENT_ID":     &c.YouTube.ClientID,
		"YOUTUBE_CLIENT_SECRET": &c.YouTube.ClientSecret,
		"YOUTUBE_REDIRECT_URI":  &c.YouTube.RedirectURI,
		"YOUTUBE_REFRESH_TOKEN": &c.YouTube.RefreshToken,
		"BLOB_READ_WRITE_TOKEN": &c.Blob.Token,
		"KV_REST_API_URL":       &c.KV.RESTURL,
		"KV_REST_API_TOKEN":     &c.KV.RESTToken,
		"CRON_SECRET":           &c.Server.CronSecret,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks backend names and the credentials each selected backend requires.
func (c *Config) Validate() error {
	switch c.Blob.Backend {
	case BlobVercel:
		if c.Blob.Token == "" {
			return fmt.Errorf("%w: blob token (BLOB_READ_WRITE_TOKEN)", ErrMissingCredentials)
		}
	case BlobGCS:
		if c.Blob.Bucket == "" {
			return fmt.Errorf("%w: blob bucket is required for gcs", ErrInvalidConfig)
		}
	case BlobLocal:
		if c.Blob.Dir == "" {
			return fmt.Errorf("%w: blob dir is required for local", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown blob backend %q", ErrInvalidConfig, c.Blob.Backend)
	}

	switch c.KV.Backend {
	case KVRest:
		if c.KV.RESTURL == "" || c.KV.RESTToken == "" {
			return fmt.Errorf("%w: KV_REST_API_URL and KV_REST_API_TOKEN", ErrMissingCredentials)
		}
	case KVRedis:
		if c.KV.RedisURL == "" {
			return fmt.Errorf("%w: kv redis_url is required for redis", ErrInvalidConfig)
		}
	case KVSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database path is required for sqlite", ErrInvalidConfig)
		}
	case KVFirestore:
		if c.KV.ProjectID == "" {
			return fmt.Errorf("%w: kv project_id is required for firestore", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown kv backend %q", ErrInvalidConfig, c.KV.Backend)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
