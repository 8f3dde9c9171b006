package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type PropertyConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type RateLimitConfig struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Property  PropertyConfig  `mapstructure:"property"`
	WS        WSConfig        `mapstructure:"ws"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// derived timeouts
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	ReadDeadline    time.Duration
	PropertyTimeout time.Duration
	RateLimitWindow time.Duration
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env != "production"
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.jwt_secret", "")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "homehive_chat")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("property.base_url", "")
	v.SetDefault("property.timeout_seconds", 5)
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.read_deadline_seconds", 60)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.window_seconds", 60)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ReadDeadline = time.Duration(c.WS.ReadDeadlineSeconds) * time.Second
	c.PropertyTimeout = time.Duration(c.Property.TimeoutSeconds) * time.Second
	c.RateLimitWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
	return &c, nil
}
