package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"PenguinWatch.dashboard/internal/blob"
	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/stream"
)

// Config holds the application's configuration.
type Config struct {
	BackendURL     string
	Port           string
	RequestTimeout time.Duration
	CORSOrigins    []string

	LogLevel  string
	LogFormat string

	CacheDriver   string // memory, sqlite or redis
	CachePath     string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StreamInitialBackoff time.Duration
	StreamMaxBackoff     time.Duration
	StreamMaxRetries     uint64

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	KafkaBrokers []string
	KafkaTopic   string

	AuthJWTSecret string
	AuthIssuer    string
	AuthAudience  string

	ExportDriver      string // fs or s3
	ExportDir         string
	ExportS3Bucket    string
	ExportS3Region    string
	ExportS3Endpoint  string
	ExportS3Key       string
	ExportS3Secret    string
	ExportS3PathStyle bool
}

// LoadConfig loads the configuration from a .env file, when present, and the
// process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		BackendURL:     strings.TrimRight(getenv("BACKEND_URL"), "/"),
		Port:           p.str("PORT", "8000"),
		RequestTimeout: p.duration("REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:    p.list("CORS_ORIGINS", []string{"*"}),

		LogLevel:  p.str("LOG_LEVEL", "info"),
		LogFormat: p.str("LOG_FORMAT", ""),

		CacheDriver:   strings.ToLower(p.str("CACHE_DRIVER", "sqlite")),
		CachePath:     p.str("CACHE_PATH", "penguinwatch-cache.db"),
		CacheTTL:      p.duration("CACHE_TTL", 0),
		RedisAddr:     p.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       p.integer("REDIS_DB", 0),

		StreamInitialBackoff: p.positiveDuration("STREAM_INITIAL_BACKOFF", 300*time.Millisecond),
		StreamMaxBackoff:     p.positiveDuration("STREAM_MAX_BACKOFF", 30*time.Second),
		StreamMaxRetries:     uint64(p.integer("STREAM_MAX_RETRIES", 0)),

		InfluxDBURL:    getenv("INFLUXDB_URL"),
		InfluxDBToken:  getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:    getenv("INFLUXDB_ORG"),
		InfluxDBBucket: p.str("INFLUXDB_BUCKET", "penguin_measurements"),

		KafkaBrokers: p.list("KAFKA_BROKERS", nil),
		KafkaTopic:   p.str("KAFKA_TOPIC", "penguin-measurements"),

		AuthJWTSecret: getenv("AUTH_JWT_SECRET"),
		AuthIssuer:    p.str("AUTH_ISSUER", "penguinwatch"),
		AuthAudience:  p.str("AUTH_AUDIENCE", "penguinwatch-dashboard"),

		ExportDriver:      strings.ToLower(p.str("EXPORT_DRIVER", "fs")),
		ExportDir:         p.str("EXPORT_DIR", "exports"),
		ExportS3Bucket:    getenv("EXPORT_S3_BUCKET"),
		ExportS3Region:    p.str("EXPORT_S3_REGION", "us-east-1"),
		ExportS3Endpoint:  getenv("EXPORT_S3_ENDPOINT"),
		ExportS3Key:       getenv("EXPORT_S3_ACCESS_KEY_ID"),
		ExportS3Secret:    getenv("EXPORT_S3_SECRET_ACCESS_KEY"),
		ExportS3PathStyle: p.boolean("EXPORT_S3_PATH_STYLE", false),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("backend configuration is incomplete. Please set the BACKEND_URL environment variable")
	}
	switch cfg.CacheDriver {
	case "memory", "sqlite", "redis":
	default:
		return Config{}, fmt.Errorf("CACHE_DRIVER: unsupported driver %q", cfg.CacheDriver)
	}
	switch cfg.ExportDriver {
	case "fs":
	case "s3":
		if cfg.ExportS3Bucket == "" {
			return Config{}, fmt.Errorf("EXPORT_S3_BUCKET is required for the s3 export driver")
		}
	default:
		return Config{}, fmt.Errorf("EXPORT_DRIVER: unsupported driver %q", cfg.ExportDriver)
	}
	return cfg, nil
}

// InfluxEnabled reports whether the measurement archive is configured.
func (c Config) InfluxEnabled() bool {
	return c.InfluxDBURL != "" && c.InfluxDBToken != "" && c.InfluxDBOrg != ""
}

// KafkaEnabled reports whether live measurements are relayed to Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// AuthEnabled reports whether mutating routes require a bearer token.
func (c Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

// CacheOptions selects the snapshot cache driver.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Driver:        c.CacheDriver,
		Path:          c.CachePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		TTL:           c.CacheTTL,
	}
}

// StreamPolicy is the reconnect policy of the live update listener.
func (c Config) StreamPolicy() stream.Policy {
	p := stream.DefaultPolicy()
	p.InitialInterval = c.StreamInitialBackoff
	p.MaxInterval = c.StreamMaxBackoff
	p.MaxRetries = c.StreamMaxRetries
	return p
}

// ExportSink configures where archived report exports go. An empty driver
// uses EXPORT_DRIVER.
func (c Config) ExportSink(driver string) blob.Config {
	if driver == "" {
		driver = c.ExportDriver
	}
	return blob.Config{
		Driver: driver,
		Dir:    c.ExportDir,
		S3: blob.S3Config{
			Region:          c.ExportS3Region,
			Bucket:          c.ExportS3Bucket,
			Endpoint:        c.ExportS3Endpoint,
			AccessKeyID:     c.ExportS3Key,
			SecretAccessKey: c.ExportS3Secret,
			PathStyle:       c.ExportS3PathStyle,
		},
	}
}

// parser keeps the first conversion error so LoadConfig can report it with
// the offending key.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, v)
		return def
	}
	return d
}

// positiveDuration is duration without zero.
func (p *parser) positiveDuration(key string, def time.Duration) time.Duration {
	d := p.duration(key, def)
	if d == 0 {
		p.fail(key, p.getenv(key))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, v)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v)
		return def
	}
	return b
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q", key, value)
	}
}
