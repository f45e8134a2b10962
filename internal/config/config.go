package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Object store drivers.
const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	ObjectStore ObjectStoreConfig
	MinIO       MinIOConfig
	S3          S3Config
	Cache       CacheConfig
	Redis       RedisConfig
	Presign     PresignConfig
	Upload      UploadConfig
	Auth        AuthConfig
	Metrics     MetricsConfig
	CORS        CORSConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Migrate  bool

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// ObjectStoreConfig selects the object store driver.
type ObjectStoreConfig struct {
	Driver string
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// S3Config carries settings for the AWS SDK driver.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// CacheConfig selects and sizes the presigned URL / identity cache.
type CacheConfig struct {
	Driver          string
	MaxEntries      int
	CleanupInterval time.Duration
	KeyPrefix       string
}

// RedisConfig holds the connection details for the redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PresignConfig controls presigned URL lifetimes and identity caching.
type PresignConfig struct {
	UploadTTL    time.Duration
	DownloadTTL  time.Duration
	KeyLookupTTL time.Duration
}

// UploadConfig limits the public upload path.
type UploadConfig struct {
	MaxSize int64
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("BUCKETGATE_API_HOST", "0.0.0.0"),
			Port:         getInt("BUCKETGATE_API_PORT", 8080),
			ReadTimeout:  getDuration("BUCKETGATE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("BUCKETGATE_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("BUCKETGATE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "bucketgate_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "bucketgate"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			Migrate:  getBool("POSTGRES_AUTO_MIGRATE", true),

			MaxConns:        int32(getInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getInt("POSTGRES_MIN_CONNS", 0)),
			MaxConnLifetime: getDuration("POSTGRES_MAX_CONN_LIFETIME", time.Hour),
		},
		ObjectStore: ObjectStoreConfig{
			Driver: strings.ToLower(getString("OBJECT_STORE_DRIVER", DriverMinIO)),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "bucketgate"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "bucketgate"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		S3: S3Config{
			Region:          getString("S3_REGION", "us-east-1"),
			Bucket:          getString("S3_BUCKET", ""),
			Endpoint:        getString("S3_ENDPOINT", ""),
			AccessKeyID:     getString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString("S3_SECRET_ACCESS_KEY", ""),
			PathStyle:       getBool("S3_PATH_STYLE", false),
		},
		Cache: CacheConfig{
			Driver:          strings.ToLower(getString("CACHE_DRIVER", CacheMemory)),
			MaxEntries:      getInt("CACHE_MAX_ENTRIES", 10000),
			CleanupInterval: getDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
			KeyPrefix:       getString("CACHE_KEY_PREFIX", "bucketgate:"),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", "localhost:6379"),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Presign: PresignConfig{
			UploadTTL:    getDuration("PRESIGN_UPLOAD_TTL", 15*time.Minute),
			DownloadTTL:  getDuration("PRESIGN_DOWNLOAD_TTL", time.Hour),
			KeyLookupTTL: getDuration("PRESIGN_KEY_LOOKUP_TTL", time.Minute),
		},
		Upload: UploadConfig{
			MaxSize: getInt64("UPLOAD_MAX_SIZE", 100*1024*1024),
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("BUCKETGATE_METRICS_PATH", "/metrics"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.ObjectStore.Driver {
	case DriverMinIO:
		if c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("MINIO_BUCKET is required for the minio driver"))
		}
	case DriverS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OBJECT_STORE_DRIVER %q", c.ObjectStore.Driver))
	}

	switch c.Cache.Driver {
	case CacheMemory:
		if c.Cache.MaxEntries <= 0 {
			errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be positive"))
		}
	case CacheRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver))
	}

	if c.Presign.UploadTTL <= 0 || c.Presign.DownloadTTL <= 0 {
		errs = append(errs, errors.New("presign TTLs must be positive"))
	}
	if c.Presign.UploadTTL > 7*24*time.Hour || c.Presign.DownloadTTL > 7*24*time.Hour {
		errs = append(errs, errors.New("presign TTLs cannot exceed 7 days"))
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func loadAuthConfig() AuthConfig {
	cost := getInt("BUCKETGATE_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("BUCKETGATE_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("BUCKETGATE_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("BUCKETGATE_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("BUCKETGATE_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
