package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// DatabaseConfig Driver 支持 postgres / sqlite
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig 消息队列（Redis Streams）配置
type QueueConfig struct {
	Group           string        `mapstructure:"group"`
	Consumer        string        `mapstructure:"consumer"`
	CreatedStream   string        `mapstructure:"created_stream"`
	UpdatedStream   string        `mapstructure:"updated_stream"`
	DeletedStream   string        `mapstructure:"deleted_stream"`
	DeadLetter      string        `mapstructure:"dead_letter_stream"`
	Prefetch        int           `mapstructure:"prefetch"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	MaxDeliveries   int           `mapstructure:"max_deliveries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	ClaimIdle       time.Duration `mapstructure:"claim_idle"`
	ClaimInterval   time.Duration `mapstructure:"claim_interval"`
	RateLimit       float64       `mapstructure:"rate_limit"` // messages/s, 0 不限速
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FanoutConfig 扇出配置
type FanoutConfig struct {
	ChunkSize        int           `mapstructure:"chunk_size"`
	Concurrency      int           `mapstructure:"concurrency"`
	FollowerCacheTTL time.Duration `mapstructure:"follower_cache_ttl"` // 0 关闭缓存
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

var ErrEmptyJWTSecret = errors.New("jwt.secret is empty")

// Validate 空 secret 会让任何人用空 key 签出合法 token
func (c JWTConfig) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrEmptyJWTSecret
	}
	return nil
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Load 加载配置：默认值 < config.yaml < FEED_* 环境变量
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration from the given file. An empty path searches
// ./config and the working directory for config.yaml.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=activity_feed port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.group", "feed-workers")
	v.SetDefault("queue.consumer", "")
	v.SetDefault("queue.created_stream", "activity.created")
	v.SetDefault("queue.updated_stream", "activity.updated")
	v.SetDefault("queue.deleted_stream", "activity.deleted")
	v.SetDefault("queue.dead_letter_stream", "activity.dead")
	v.SetDefault("queue.prefetch", 16)
	v.SetDefault("queue.block_timeout", 5*time.Second)
	v.SetDefault("queue.max_deliveries", 10)
	v.SetDefault("queue.retry_backoff", time.Second)
	v.SetDefault("queue.max_backoff", time.Minute)
	v.SetDefault("queue.claim_idle", 5*time.Minute)
	v.SetDefault("queue.claim_interval", 30*time.Second)
	v.SetDefault("queue.rate_limit", 0)
	v.SetDefault("queue.handler_timeout", 30*time.Second)
	v.SetDefault("queue.shutdown_timeout", 15*time.Second)

	v.SetDefault("fanout.chunk_size", 500)
	v.SetDefault("fanout.concurrency", 4)
	v.SetDefault("fanout.follower_cache_ttl", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.secret", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "activity-feed")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
