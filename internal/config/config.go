// Package config loads the incident server configuration. Every field is
// optional; Get* accessors supply the defaults for anything left unset so a
// partial file is always safe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INCIDENT_"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Defaults.
const (
	DefaultListenAddr   = ":8080"
	DefaultGRPCAddr     = ":8081"
	DefaultDBPath       = "incident.db"
	DefaultStorageDir   = "outputs"
	DefaultMaxUploadMB  = 200
	DefaultKafkaTopic   = "incident.cases"
	DefaultFFmpeg       = "ffmpeg"
	DefaultFFprobe      = "ffprobe"
	DefaultWorkers      = 1
	DefaultTargetFPS    = 3.0
	DefaultCacheSize    = 512
	DefaultHasher       = "xxhash"
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultModelTimeout = 30 * time.Second
)

// Config is the root configuration document, in JSON or YAML.
type Config struct {
	ListenAddr  *string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	GRPCAddr    *string `json:"grpc_addr,omitempty" yaml:"grpc_addr,omitempty"`
	DBPath      *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	StorageDir  *string `json:"storage_dir,omitempty" yaml:"storage_dir,omitempty"`
	MaxUploadMB *int    `json:"max_upload_mb,omitempty" yaml:"max_upload_mb,omitempty"`

	// Perception service. An empty URL runs the server with static
	// collaborators that detect nothing.
	PerceptionURL    *string `json:"perception_url,omitempty" yaml:"perception_url,omitempty"`
	PerceptionAPIKey *string `json:"perception_api_key,omitempty" yaml:"perception_api_key,omitempty"`
	ModelTimeout     *string `json:"model_timeout,omitempty" yaml:"model_timeout,omitempty"` // duration like "30s"

	// Captions come from an OpenAI compatible endpoint when a key is set.
	OpenAIAPIKey  *string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty"`
	OpenAIBaseURL *string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty"`
	OpenAIModel   *string `json:"openai_model,omitempty" yaml:"openai_model,omitempty"`

	KafkaBrokers *string `json:"kafka_brokers,omitempty" yaml:"kafka_brokers,omitempty"` // comma separated
	KafkaTopic   *string `json:"kafka_topic,omitempty" yaml:"kafka_topic,omitempty"`

	FFmpegPath  *string  `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
	FFprobePath *string  `json:"ffprobe_path,omitempty" yaml:"ffprobe_path,omitempty"`
	Workers     *int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	TargetFPS   *float64 `json:"target_fps,omitempty" yaml:"target_fps,omitempty"`

	CacheSize *int    `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
	Hasher    *string `json:"hasher,omitempty" yaml:"hasher,omitempty"`

	Debug *bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// Load reads a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value files into the process environment. Variables
// already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from INCIDENT_* variables, e.g.
// INCIDENT_LISTEN_ADDR or INCIDENT_WORKERS. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst **string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = ptrString(v)
		}
	}
	integer := func(name string, dst **int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = ptrInt(n)
		}
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("DB_PATH", &c.DBPath)
	str("STORAGE_DIR", &c.StorageDir)
	integer("MAX_UPLOAD_MB", &c.MaxUploadMB)
	str("PERCEPTION_URL", &c.PerceptionURL)
	str("PERCEPTION_API_KEY", &c.PerceptionAPIKey)
	str("MODEL_TIMEOUT", &c.ModelTimeout)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("OPENAI_MODEL", &c.OpenAIModel)
	str("KAFKA_BROKERS", &c.KafkaBrokers)
	str("KAFKA_TOPIC", &c.KafkaTopic)
	str("FFMPEG_PATH", &c.FFmpegPath)
	str("FFPROBE_PATH", &c.FFprobePath)
	integer("WORKERS", &c.Workers)
	integer("CACHE_SIZE", &c.CacheSize)
	str("HASHER", &c.Hasher)

	if v, ok := lookup(EnvPrefix + "TARGET_FPS"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTARGET_FPS: %w", EnvPrefix, err))
		} else {
			c.TargetFPS = ptrFloat64(f)
		}
	}
	if v, ok := lookup(EnvPrefix + "DEBUG"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDEBUG: %w", EnvPrefix, err))
		} else {
			c.Debug = ptrBool(b)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks that set values are usable.
func (c *Config) Validate() error {
	if c.MaxUploadMB != nil && *c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", *c.MaxUploadMB)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.TargetFPS != nil && *c.TargetFPS <= 0 {
		return fmt.Errorf("target_fps must be positive, got %g", *c.TargetFPS)
	}
	if c.CacheSize != nil && *c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", *c.CacheSize)
	}
	if c.Hasher != nil {
		switch *c.Hasher {
		case "", "xxhash", "sha256":
		default:
			return fmt.Errorf("hasher must be xxhash or sha256, got %q", *c.Hasher)
		}
	}
	if c.ModelTimeout != nil && *c.ModelTimeout != "" {
		if _, err := time.ParseDuration(*c.ModelTimeout); err != nil {
			return fmt.Errorf("invalid model_timeout '%s': %w", *c.ModelTimeout, err)
		}
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func (c *Config) GetListenAddr() string { return stringOr(c.ListenAddr, DefaultListenAddr) }
func (c *Config) GetGRPCAddr() string   { return stringOr(c.GRPCAddr, DefaultGRPCAddr) }
func (c *Config) GetDBPath() string     { return stringOr(c.DBPath, DefaultDBPath) }
func (c *Config) GetStorageDir() string { return stringOr(c.StorageDir, DefaultStorageDir) }

// GetMaxUploadBytes is the request body limit for uploads.
func (c *Config) GetMaxUploadBytes() int64 {
	mb := DefaultMaxUploadMB
	if c.MaxUploadMB != nil {
		mb = *c.MaxUploadMB
	}
	return int64(mb) << 20
}

func (c *Config) GetPerceptionURL() string    { return stringOr(c.PerceptionURL, "") }
func (c *Config) GetPerceptionAPIKey() string { return stringOr(c.PerceptionAPIKey, "") }

// GetModelTimeout bounds each call to a perception or caption service.
func (c *Config) GetModelTimeout() time.Duration {
	if c.ModelTimeout == nil || *c.ModelTimeout == "" {
		return DefaultModelTimeout
	}
	d, err := time.ParseDuration(*c.ModelTimeout)
	if err != nil {
		return DefaultModelTimeout
	}
	return d
}

func (c *Config) GetOpenAIAPIKey() string  { return stringOr(c.OpenAIAPIKey, "") }
func (c *Config) GetOpenAIBaseURL() string { return stringOr(c.OpenAIBaseURL, "") }
func (c *Config) GetOpenAIModel() string   { return stringOr(c.OpenAIModel, DefaultOpenAIModel) }

// GetKafkaBrokers splits the broker list; nil disables event publishing.
func (c *Config) GetKafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(stringOr(c.KafkaBrokers, ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) GetKafkaTopic() string  { return stringOr(c.KafkaTopic, DefaultKafkaTopic) }
func (c *Config) GetFFmpegPath() string  { return stringOr(c.FFmpegPath, DefaultFFmpeg) }
func (c *Config) GetFFprobePath() string { return stringOr(c.FFprobePath, DefaultFFprobe) }

func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

func (c *Config) GetTargetFPS() float64 {
	if c.TargetFPS == nil {
		return DefaultTargetFPS
	}
	return *c.TargetFPS
}

func (c *Config) GetCacheSize() int {
	if c.CacheSize == nil {
		return DefaultCacheSize
	}
	return *c.CacheSize
}

func (c *Config) GetHasher() string { return stringOr(c.Hasher, DefaultHasher) }

func (c *Config) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
