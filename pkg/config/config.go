package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full service configuration, loaded from environment
// variables with optional .env support.
type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Metrics MetricsConfig
	Backup  BackupConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8000" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	EnableAuth      bool          `env:"ENABLE_AUTH" envDefault:"false"`
	APIKey          string        `env:"API_KEY"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*"`
}

type MongoConfig struct {
	URI                    string        `env:"MONGODB_URI"`
	Host                   string        `env:"MONGO_HOST" envDefault:"localhost"`
	Port                   int           `env:"MONGO_PORT" envDefault:"27017" validate:"gte=1,lte=65535"`
	User                   string        `env:"MONGO_USER"`
	Password               string        `env:"MONGO_PASSWORD"`
	Database               string        `env:"MONGO_DB_NAME" envDefault:"generic_crud_db" validate:"required"`
	Collection             string        `env:"MONGO_COLLECTION_NAME" envDefault:"items" validate:"required"`
	MaxPoolSize            uint64        `env:"MAX_POOL_SIZE" envDefault:"100"`
	ConnectTimeout         time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	ServerSelectionTimeout time.Duration `env:"SERVER_SELECTION_TIMEOUT" envDefault:"5s"`
	RetryWrites            bool          `env:"RETRY_WRITES" envDefault:"true"`
	RetryReads             bool          `env:"RETRY_READS" envDefault:"true"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

type MetricsConfig struct {
	Enabled    bool   `env:"METRICS_ENABLED" envDefault:"false"`
	StatsdAddr string `env:"STATSD_ADDR" envDefault:"127.0.0.1:8125"`
	Namespace  string `env:"METRICS_NAMESPACE" envDefault:"docstore"`
}

type BackupConfig struct {
	Dir string `env:"BACKUP_DIR" envDefault:"./backups"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load reads an optional .env file, fills the configuration from the
// environment and validates it.
func Load() (*Config, error) {
	// missing .env is not an error
	_ = godotenv.Load()

	cfg := &Config{}
	if err := loadEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the struct-tag rules plus the cross-field checks the
// tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		verr := &ValidationError{}
		if failures, ok := err.(validator.ValidationErrors); ok {
			for _, f := range failures {
				verr.Failures = append(verr.Failures,
					fmt.Sprintf("field %s failed rule %s", f.Field(), f.Tag()))
			}
			return verr
		}
		return err
	}

	if c.Server.EnableAuth && c.Server.APIKey == "" {
		return &ValidationError{Failures: []string{"API_KEY is required when ENABLE_AUTH is true"}}
	}
	return nil
}

// Warnings reports configuration choices that work but deserve operator
// attention.
func (c *Config) Warnings() []string {
	var out []string
	if !c.Server.EnableAuth {
		out = append(out, "authentication is disabled, the API is open")
	}
	if c.Mongo.URI == "" && c.Mongo.Password == "" {
		out = append(out, "connecting to MongoDB without credentials")
	}
	if c.Redis.Addr == "" {
		out = append(out, "REDIS_ADDR not set, response caching is disabled")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			out = append(out, "CORS allows all origins")
			break
		}
	}
	return out
}

// MongoURI returns the explicit MONGODB_URI when set, otherwise a URI
// composed from the individual host settings.
func (c *MongoConfig) MongoURI() string {
	if c.URI != "" {
		return c.URI
	}
	if c.User != "" && c.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
			url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", c.Host, c.Port)
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedactedURI is the connection string safe for logs.
func (c *MongoConfig) RedactedURI() string {
	uri := c.MongoURI()
	if at := strings.LastIndex(uri, "@"); at != -1 {
		if scheme := strings.Index(uri, "://"); scheme != -1 {
			return uri[:scheme+3] + "***@" + uri[at+1:]
		}
	}
	return uri
}
