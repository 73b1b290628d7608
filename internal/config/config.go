package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	MediaLocal = "local"
	MediaS3    = "s3"
)

type Config struct {
	Port              string
	MongoURI          string
	StoreDriver       string
	JWTSecret         string
	JWTExpiry         time.Duration
	AllowedOrigins    []string
	LogLevel          string
	LogFormat         string
	RequestTimeout    time.Duration
	StrictCoordinates bool
	RateLimitEnabled  bool
	Redis             RedisConfig
	Media             MediaConfig
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

type MediaConfig struct {
	Backend        string
	UploadDir      string
	MaxUploadBytes int64
	// Cleanup removes replaced and deleted alert media.
	Cleanup       bool
	SweepInterval time.Duration
	SweepGrace    time.Duration

	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// SweepEnabled reports whether the background sweeper should run. Turning
// cleanup off keeps every stored file, so it also disables the sweeper.
func (m MediaConfig) SweepEnabled() bool {
	return m.Cleanup && m.SweepInterval > 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("STRICT_COORDINATES", false)
	v.SetDefault("RATE_LIMIT_ENABLED", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_RETRY_DELAY", "500ms")
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("REDIS_POOL_TIMEOUT", "4s")

	v.SetDefault("MEDIA_BACKEND", MediaLocal)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("MEDIA_CLEANUP", true)
	v.SetDefault("MEDIA_SWEEP_INTERVAL", "1h")
	v.SetDefault("MEDIA_SWEEP_GRACE", "1h")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "uploads")
}

// Load reads configuration from the environment, after loading an optional
// .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		MongoURI:          v.GetString("MONGO_URI"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTExpiry:         v.GetDuration("JWT_EXPIRY"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
		StrictCoordinates: v.GetBool("STRICT_COORDINATES"),
		RateLimitEnabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		Redis: RedisConfig{
			Enabled:      v.GetBool("REDIS_ENABLED"),
			URL:          v.GetString("REDIS_URL"),
			Host:         v.GetString("REDIS_HOST"),
			Port:         v.GetString("REDIS_PORT"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			RetryDelay:   v.GetDuration("REDIS_RETRY_DELAY"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolTimeout:  v.GetDuration("REDIS_POOL_TIMEOUT"),
		},
		Media: MediaConfig{
			Backend:           strings.ToLower(v.GetString("MEDIA_BACKEND")),
			UploadDir:         v.GetString("UPLOAD_DIR"),
			MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
			Cleanup:           v.GetBool("MEDIA_CLEANUP"),
			SweepInterval:     v.GetDuration("MEDIA_SWEEP_INTERVAL"),
			SweepGrace:        v.GetDuration("MEDIA_SWEEP_GRACE"),
			S3Bucket:          v.GetString("S3_BUCKET"),
			S3Region:          v.GetString("S3_REGION"),
			S3Prefix:          v.GetString("S3_PREFIX"),
			S3Endpoint:        v.GetString("S3_ENDPOINT"),
			S3AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI environment variable is not set")
		}
	case StoreMemory:
	default:
		return errors.New("STORE_DRIVER must be mongo or memory")
	}

	switch c.Media.Backend {
	case MediaLocal:
		if c.Media.UploadDir == "" {
			return errors.New("UPLOAD_DIR must not be empty")
		}
	case MediaS3:
		if c.Media.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when MEDIA_BACKEND=s3")
		}
	default:
		return errors.New("MEDIA_BACKEND must be local or s3")
	}

	if c.JWTExpiry <= 0 {
		c.JWTExpiry = 24 * time.Hour
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
