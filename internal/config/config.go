// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobsearch-ingest/internal/queue/memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Query   QueryConfig   `mapstructure:"query"`
	Source  SourceConfig  `mapstructure:"source"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// QueueConfig bounds the ingestion queues. MaxDepth 0 leaves them unbounded.
type QueueConfig struct {
	MaxDepth int    `mapstructure:"max_depth"`
	Overflow string `mapstructure:"overflow"`
}

// WorkerConfig controls persistence workers.
type WorkerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

// QueryConfig sets stored-query paging limits.
type QueryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// SourceConfig points the adapter at the job board.
type SourceConfig struct {
	APIBaseURL         string        `mapstructure:"api_base_url"`
	SiteBaseURL        string        `mapstructure:"site_base_url"`
	UserAgent          string        `mapstructure:"user_agent"`
	PerPage            int           `mapstructure:"per_page"`
	VacanciesTimeout   time.Duration `mapstructure:"vacancies_timeout"`
	ResumeTimeout      time.Duration `mapstructure:"resume_timeout"`
	ResumeLinksTimeout time.Duration `mapstructure:"resume_links_timeout"`
	RateLimitRPS       float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. Environment variables use the
// JOBSEARCH_ prefix with dots replaced by underscores, e.g. JOBSEARCH_DB_DSN.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.connect_timeout", 10*time.Second)
	v.SetDefault("db.migrate_on_start", true)
	v.SetDefault("queue.max_depth", 0)
	v.SetDefault("queue.overflow", memory.DropNewest.String())
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)
	v.SetDefault("worker.ping_timeout", 5*time.Second)
	v.SetDefault("query.default_limit", 20)
	v.SetDefault("query.max_limit", 200)
	v.SetDefault("source.api_base_url", "https://api.hh.ru")
	v.SetDefault("source.site_base_url", "https://hh.ru")
	v.SetDefault("source.user_agent", "jobsearch-ingest/0.1")
	v.SetDefault("source.per_page", 20)
	v.SetDefault("source.vacancies_timeout", 10*time.Second)
	v.SetDefault("source.resume_timeout", 10*time.Second)
	v.SetDefault("source.resume_links_timeout", 15*time.Second)
	v.SetDefault("source.rate_limit_rps", 5.0)
	v.SetDefault("source.rate_limit_burst", 2)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 {
		return fmt.Errorf("db.max_conns and db.min_conns must be >= 0")
	}
	if c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("db.min_conns must not exceed db.max_conns")
	}
	if c.Queue.MaxDepth < 0 {
		return fmt.Errorf("queue.max_depth must be >= 0")
	}
	if _, err := memory.ParseOverflowPolicy(c.Queue.Overflow); err != nil {
		return fmt.Errorf("queue.overflow: %w", err)
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker.shutdown_timeout must be > 0")
	}
	if c.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be > 0")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit must be >= query.default_limit")
	}
	if c.Source.PerPage <= 0 {
		return fmt.Errorf("source.per_page must be > 0")
	}
	if c.Source.RateLimitRPS < 0 {
		return fmt.Errorf("source.rate_limit_rps must be >= 0")
	}
	return nil
}

// QueueOptions converts the queue section into memory.Options.
func (c Config) QueueOptions() memory.Options {
	policy, _ := memory.ParseOverflowPolicy(c.Queue.Overflow)
	return memory.Options{MaxDepth: c.Queue.MaxDepth, Overflow: policy}
}
