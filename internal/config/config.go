// Package config loads and validates harvester configuration via Viper.
//
// Every knob can come from a config file, from HARVESTER_* environment
// variables, or from the legacy variable names used by earlier deployments
// (FIRECRAWL_API_KEY, R2_ACCESS_KEY_ID, ...).
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/autorag/harvester/internal/crawl"
)

// Environments accepted for app.environment.
const (
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Storage backends accepted for storage.backend.
const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// AppConfig identifies the application and its runtime environment.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	// Debug is tri-state: when unset it follows the environment (on for
	// local, off otherwise).
	Debug *bool `mapstructure:"debug"`
}

// CrawlConfig governs job submission and the poll loop.
type CrawlConfig struct {
	APIKey                string   `mapstructure:"api_key"`
	BaseURL               string   `mapstructure:"base_url"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	PollIntervalSeconds   int      `mapstructure:"poll_interval_seconds"`
	MaxPolls              int      `mapstructure:"max_polls"`
	TimeoutSeconds        int      `mapstructure:"timeout_seconds"`
	Limit                 int      `mapstructure:"limit"`
	MaxDepth              int      `mapstructure:"max_depth"`
	Formats               []string `mapstructure:"formats"`
	RemoveBase64Images    bool     `mapstructure:"remove_base64_images"`
	OnlyMainContent       bool     `mapstructure:"only_main_content"`
	OutputDir             string   `mapstructure:"output_dir"`
}

// StorageConfig selects and parameterizes the blob storage backend.
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Bucket      string      `mapstructure:"bucket"`
	ContentType string      `mapstructure:"content_type"`
	S3          S3Config    `mapstructure:"s3"`
	Local       LocalConfig `mapstructure:"local"`
}

// S3Config holds credentials and addressing for the S3-compatible backend.
// With no explicit endpoint the R2 endpoint is derived from the account id.
type S3Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
}

// LocalConfig holds parameters for the filesystem backend.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ServerConfig controls the optional in-process status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DatabaseConfig controls the optional Postgres run ledger. An empty DSN
// disables the ledger.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for completion-event notifications. An empty
// project or topic selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig controls the progress event hub.
type ProgressConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	LogEnabled bool `mapstructure:"log_enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// Load builds a Config from disk/environment. An empty path searches the
// usual locations for a "harvester" config file and tolerates a miss.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("harvester")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/harvester")
		v.AddConfigPath("$HOME/.harvester")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv keeps the variable names exported by earlier deployments
// working alongside the HARVESTER_* forms. The HARVESTER_* name wins when
// both are set.
func bindLegacyEnv(v *viper.Viper) {
	aliases := map[string]string{
		"app.name":                     "APP_NAME",
		"app.environment":              "ENVIRONMENT",
		"app.debug":                    "DEBUG",
		"crawl.api_key":                "FIRECRAWL_API_KEY",
		"storage.bucket":               "R2_BUCKET_NAME",
		"storage.s3.account_id":        "R2_ACCOUNT_ID",
		"storage.s3.access_key_id":     "R2_ACCESS_KEY_ID",
		"storage.s3.secret_access_key": "R2_SECRET_ACCESS_KEY",
	}
	replacer := strings.NewReplacer(".", "_")
	for key, legacy := range aliases {
		prefixed := "HARVESTER_" + strings.ToUpper(replacer.Replace(key))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "harvester")
	v.SetDefault("app.environment", EnvLocal)

	v.SetDefault("crawl.api_key", "")
	v.SetDefault("crawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("crawl.request_timeout_seconds", 30)
	v.SetDefault("crawl.poll_interval_seconds", 10)
	v.SetDefault("crawl.max_polls", 0)
	v.SetDefault("crawl.timeout_seconds", 0)
	v.SetDefault("crawl.limit", 10)
	v.SetDefault("crawl.max_depth", 5)
	v.SetDefault("crawl.formats", []string{"rawHtml"})
	v.SetDefault("crawl.remove_base64_images", true)
	v.SetDefault("crawl.only_main_content", true)
	v.SetDefault("crawl.output_dir", "crawled_html")

	v.SetDefault("storage.backend", BackendS3)
	v.SetDefault("storage.bucket", "test-bucket")
	v.SetDefault("storage.content_type", "text/html")
	v.SetDefault("storage.s3.account_id", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.local.base_dir", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 256)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.App.Environment {
	case EnvLocal, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("app.environment must be one of %s, %s, %s; got %q",
			EnvLocal, EnvStaging, EnvProduction, c.App.Environment)
	}
	if c.Crawl.APIKey == "" {
		return fmt.Errorf("crawl.api_key must be set (FIRECRAWL_API_KEY)")
	}
	if c.Crawl.PollIntervalSeconds <= 0 {
		return fmt.Errorf("crawl.poll_interval_seconds must be > 0")
	}
	if c.Crawl.MaxPolls < 0 {
		return fmt.Errorf("crawl.max_polls must be >= 0")
	}
	if c.Crawl.Limit <= 0 {
		return fmt.Errorf("crawl.limit must be > 0")
	}
	if c.Crawl.MaxDepth <= 0 {
		return fmt.Errorf("crawl.max_depth must be > 0")
	}
	if c.Crawl.OutputDir == "" {
		return fmt.Errorf("crawl.output_dir must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return c.Storage.validate()
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendS3:
		if s.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the s3 backend (R2_BUCKET_NAME)")
		}
		if s.S3.AccessKeyID == "" || s.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3 credentials must be set (R2_ACCESS_KEY_ID / R2_SECRET_ACCESS_KEY)")
		}
		if s.S3.AccountID == "" && s.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.account_id must be set when storage.s3.endpoint is empty (R2_ACCOUNT_ID)")
		}
	case BackendGCS:
		if s.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	case BackendLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
	return nil
}

// DebugEnabled resolves the tri-state debug flag: the explicit value when
// set, otherwise on only in the local environment.
func (c Config) DebugEnabled() bool {
	if c.App.Debug != nil {
		return *c.App.Debug
	}
	return c.App.Environment == EnvLocal
}

// CrawlParams builds job submission parameters from the crawl section.
func (c Config) CrawlParams() crawl.Params {
	formats := make([]string, len(c.Crawl.Formats))
	copy(formats, c.Crawl.Formats)
	return crawl.Params{
		Limit:    c.Crawl.Limit,
		MaxDepth: c.Crawl.MaxDepth,
		ScrapeOptions: crawl.ScrapeOptions{
			Formats:            formats,
			RemoveBase64Images: c.Crawl.RemoveBase64Images,
			OnlyMainContent:    c.Crawl.OnlyMainContent,
		},
	}
}

// PollInterval returns the fixed wait between status fetches.
func (c CrawlConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RunTimeout returns the optional whole-run deadline; zero means none.
func (c CrawlConfig) RunTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout.
func (c CrawlConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MaxConnLifetime returns the pool connection lifetime.
func (d DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(d.MaxConnLifetimeMinutes) * time.Minute
}

// Loader memoizes a Load result so the environment is read once per process
// no matter how many components ask for configuration.
type Loader struct {
	path string
	once sync.Once
	cfg  Config
	err  error
}

// NewLoader creates a Loader for the config file at path (may be empty).
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Get returns the cached configuration, loading it on first use. A load
// failure is cached too; callers see the same error every time.
func (l *Loader) Get() (Config, error) {
	l.once.Do(func() {
		l.cfg, l.err = Load(l.path)
	})
	return l.cfg, l.err
}
