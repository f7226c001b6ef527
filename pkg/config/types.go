package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived values other packages may query at runtime
// (populated during startup after merging flags, env and file).
type RuntimeConfig struct {
	APIToken       string
	AllowedOrigins []string
}

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Account   AccountConfig   `yaml:"account"`
	Remote    RemoteConfig    `yaml:"remote"`
	Translate TranslateConfig `yaml:"translate"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
	Codec     CodecConfig     `yaml:"codec"`
	Timeline  TimelineConfig  `yaml:"timeline"`
	Replies   RepliesConfig   `yaml:"replies"`
}

// ServerConfig holds local API listener settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// Actions optionally serves the hot mutation endpoints through a
	// dedicated fasthttp listener
	Actions ActionsConfig `yaml:"actions"`
}

// ActionsConfig selects the transport for the action endpoints.
type ActionsConfig struct {
	Transport string `yaml:"transport"` // std | fast
	Port      int    `yaml:"port"`
}

// StorageConfig holds the embedded store settings.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	// CacheSize is the pebble block cache size
	CacheSize SizeBytes `yaml:"cache_size"`
	// SyncWrites forces fsync on single-record puts
	SyncWrites bool `yaml:"sync_writes"`
}

// AccountConfig identifies the signed-in user whose records are stored.
type AccountConfig struct {
	UserID int64  `yaml:"user_id"`
	Handle string `yaml:"handle"`
}

// RemoteConfig holds remote API client settings and credentials.
// Credentials are usually supplied via environment, not the file.
type RemoteConfig struct {
	BaseURL        string   `yaml:"base_url"`
	ConsumerKey    string   `yaml:"consumer_key"`
	ConsumerSecret string   `yaml:"consumer_secret"`
	AccessToken    string   `yaml:"access_token"`
	AccessSecret   string   `yaml:"access_secret"`
	RPS            float64  `yaml:"rps"`
	Burst          int      `yaml:"burst"`
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseBackoff    Duration `yaml:"base_backoff"`
	Timeout        Duration `yaml:"timeout"`
}

// TranslateConfig holds translation service settings.
type TranslateConfig struct {
	Endpoint   string   `yaml:"endpoint"`
	TargetLang string   `yaml:"target_lang"`
	Timeout    Duration `yaml:"timeout"`
}

// SecurityConfig holds local API protection settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	// APIToken, when set, is required as a bearer token on /v1 routes
	APIToken string `yaml:"api_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Activity enables the JSON activity sink under the state dir
	Activity bool `yaml:"activity"`
}

// RetentionConfig holds configuration for the automatic purge runner.
type RetentionConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Cron       string   `yaml:"cron"`
	Period     Duration `yaml:"period"`
	BatchSize  int      `yaml:"batch_size"`
	BatchSleep Duration `yaml:"batch_sleep"`
	DryRun     bool     `yaml:"dry_run"`
	Paused     bool     `yaml:"paused"`
	MinPeriod  Duration `yaml:"min_period"`
}

// CodecConfig controls the serialization worker pool.
type CodecConfig struct {
	Workers              int       `yaml:"workers"`
	QueueDepth           int       `yaml:"queue_depth"`
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
}

// TimelineConfig controls timeline fetch and hydration behavior.
type TimelineConfig struct {
	PageSize        int      `yaml:"page_size"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	Hydrate         *bool    `yaml:"hydrate"`
}

// HydrateEnabled reports whether cold-start hydration is on; it defaults
// to on when the field is absent from the file.
func (t TimelineConfig) HydrateEnabled() bool {
	return t.Hydrate == nil || *t.Hydrate
}

// RepliesConfig controls the reply thread walker.
type RepliesConfig struct {
	PageSize int `yaml:"page_size"`
	// MaxPages caps a single walk; 0 means no cap
	MaxPages int `yaml:"max_pages"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
