package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig
	Log     LogConfig
	HTTP    HTTPConfig
	Store   StoreConfig
	Redis   RedisConfig
	Import  ImportConfig
	S3      S3Config
	Metrics MetricsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver   string
	Mongo    MongoConfig
	Postgres DatabaseConfig
	// SQLitePath is used by the sqlite driver; ":memory:" keeps nothing on disk
	SQLitePath string
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
	Transactions           bool
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
}

// RedisConfig holds the bill lock's Redis settings. Without Redis the
// server falls back to an in-process lock.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
	LockWait time.Duration
}

// ImportConfig holds bulk import settings
type ImportConfig struct {
	// BatchSize is the number of writes per commit, kept below MaxBatchOps
	BatchSize      int
	MaxBatchOps    int
	DefaultCompany string
	MaxUploadSize  int64
}

// S3Config holds settings for archiving uploaded spreadsheets
type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration with this precedence, highest first:
// 1. PROPBILL_-prefixed environment variables (e.g. PROPBILL_STORE_DRIVER)
// 2. config.toml
// 3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PROPBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("metrics.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			Mongo: MongoConfig{
				URI:                    v.GetString("store.mongo.uri"),
				Database:               v.GetString("store.mongo.database"),
				MaxPoolSize:            v.GetUint64("store.mongo.max_pool_size"),
				ServerSelectionTimeout: v.GetDuration("store.mongo.server_selection_timeout"),
				Transactions:           v.GetBool("store.mongo.transactions"),
			},
			Postgres: DatabaseConfig{
				Host:            v.GetString("store.postgres.host"),
				Port:            v.GetInt("store.postgres.port"),
				User:            v.GetString("store.postgres.user"),
				Password:        v.GetString("store.postgres.password"),
				DBName:          v.GetString("store.postgres.dbname"),
				SSLMode:         v.GetString("store.postgres.sslmode"),
				MaxOpenConns:    v.GetInt("store.postgres.max_open_conns"),
				MaxIdleConns:    v.GetInt("store.postgres.max_idle_conns"),
				ConnMaxLifetime: v.GetInt("store.postgres.conn_max_lifetime"),
				ConnMaxIdleTime: v.GetInt("store.postgres.conn_max_idle_time"),
				SlowQuery:       v.GetDuration("store.postgres.slow_query"),
			},
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
			LockWait: v.GetDuration("redis.lock_wait"),
		},
		Import: ImportConfig{
			BatchSize:      v.GetInt("import.batch_size"),
			MaxBatchOps:    v.GetInt("import.max_batch_ops"),
			DefaultCompany: v.GetString("import.default_company"),
			MaxUploadSize:  v.GetInt64("import.max_upload_size"),
		},
		S3: S3Config{
			Enabled:         v.GetBool("s3.enabled"),
			Bucket:          v.GetString("s3.bucket"),
			Region:          v.GetString("s3.region"),
			Endpoint:        v.GetString("s3.endpoint"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			Prefix:          v.GetString("s3.prefix"),
			UsePathStyle:    v.GetBool("s3.use_path_style"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "propbill"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// imports stream progress for as long as the pipeline runs
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverMemory
	}
	if cfg.Store.Mongo.Database == "" {
		cfg.Store.Mongo.Database = "propbill"
	}
	if cfg.Store.Mongo.ServerSelectionTimeout == 0 {
		cfg.Store.Mongo.ServerSelectionTimeout = 5 * time.Second
	}
	if cfg.Store.Postgres.Host == "" {
		cfg.Store.Postgres.Host = "localhost"
	}
	if cfg.Store.Postgres.Port == 0 {
		cfg.Store.Postgres.Port = 5432
	}
	if cfg.Store.Postgres.User == "" {
		cfg.Store.Postgres.User = "postgres"
	}
	if cfg.Store.Postgres.DBName == "" {
		cfg.Store.Postgres.DBName = "propbill"
	}
	if cfg.Store.Postgres.SSLMode == "" {
		cfg.Store.Postgres.SSLMode = "disable"
	}
	if cfg.Store.Postgres.MaxOpenConns == 0 {
		cfg.Store.Postgres.MaxOpenConns = 10
	}
	if cfg.Store.Postgres.MaxIdleConns == 0 {
		cfg.Store.Postgres.MaxIdleConns = 2
	}
	if cfg.Store.Postgres.ConnMaxLifetime == 0 {
		cfg.Store.Postgres.ConnMaxLifetime = 60
	}
	if cfg.Store.Postgres.ConnMaxIdleTime == 0 {
		cfg.Store.Postgres.ConnMaxIdleTime = 30
	}
	if cfg.Store.Postgres.SlowQuery == 0 {
		cfg.Store.Postgres.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "propbill.db"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Redis.LockWait == 0 {
		cfg.Redis.LockWait = 5 * time.Second
	}
	if cfg.Import.MaxBatchOps == 0 {
		cfg.Import.MaxBatchOps = 500
	}
	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = 450
	}
	if cfg.Import.DefaultCompany == "" {
		cfg.Import.DefaultCompany = "Bidvest"
	}
	if cfg.Import.MaxUploadSize == 0 {
		cfg.Import.MaxUploadSize = 32 << 20
	}
	if cfg.S3.Prefix == "" {
		cfg.S3.Prefix = "imports/"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverSQLite:
	case StoreDriverMongo:
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("store.mongo.uri is required for the mongo driver")
		}
	case StoreDriverPostgres:
		if c.Store.Postgres.MaxOpenConns <= 0 {
			return fmt.Errorf("store.postgres.max_open_conns must be positive")
		}
		if c.Store.Postgres.MaxIdleConns < 0 {
			return fmt.Errorf("store.postgres.max_idle_conns cannot be negative")
		}
		if c.Store.Postgres.MaxIdleConns > c.Store.Postgres.MaxOpenConns {
			return fmt.Errorf("store.postgres.max_idle_conns (%d) cannot exceed store.postgres.max_open_conns (%d)",
				c.Store.Postgres.MaxIdleConns, c.Store.Postgres.MaxOpenConns)
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, mongo, postgres, sqlite; got %q", c.Store.Driver)
	}

	if c.Import.BatchSize < 0 || c.Import.MaxBatchOps < 0 {
		return fmt.Errorf("import.batch_size and import.max_batch_ops cannot be negative")
	}
	if c.Import.BatchSize >= c.Import.MaxBatchOps {
		return fmt.Errorf("import.batch_size (%d) must be below import.max_batch_ops (%d)",
			c.Import.BatchSize, c.Import.MaxBatchOps)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required when s3 is enabled")
		}
	}

	if c.App.Env == "production" {
		if c.Store.Driver == StoreDriverMemory || c.Store.Driver == StoreDriverSQLite {
			return fmt.Errorf("store.driver %q is not allowed in production", c.Store.Driver)
		}
		if c.Store.Driver == StoreDriverPostgres {
			if c.Store.Postgres.Password == "" {
				return fmt.Errorf("store.postgres.password is required in production")
			}
			if c.Store.Postgres.SSLMode == "disable" {
				return fmt.Errorf("store.postgres.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
