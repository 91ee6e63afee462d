package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/Dhoini/stripe-sync/internal/stripe"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Драйверы кэша
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Клиенты Kafka
const (
	KafkaClientKafkaGo = "kafka-go"
	KafkaClientSarama  = "sarama"
)

// Config структура конфигурации приложения
// MaxWebhookProcessTimeout верхняя граница обработки вебхука до ответа отправителю
const MaxWebhookProcessTimeout = 10 * time.Second

type Config struct {
	Env      string
	Server   ServerConfig
	Logging  LoggingConfig
	Stripe   StripeConfig
	Webhook  WebhookConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level string
}

// StripeConfig конфигурация Stripe
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// WebhookConfig лимиты пайплайна вебхуков
type WebhookConfig struct {
	RefetchMaxElapsed time.Duration
	ProcessTimeout    time.Duration
}

type CacheConfig struct {
	Driver        string
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig конфигурация Postgres для адаптера синхронизации
type DatabaseConfig struct {
	Enabled bool
	DSN     string
}

// KafkaConfig конфигурация публикации событий синхронизации
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	Client      string
	EnsureTopic bool
}

type AuthConfig struct {
	JWTSecret string
}

type MetricsConfig struct {
	SystemInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WEBHOOK_REFETCH_MAX_ELAPSED", "3s")
	v.SetDefault("WEBHOOK_PROCESS_TIMEOUT", "8s")
	v.SetDefault("CACHE_DRIVER", CacheDriverMemory)
	v.SetDefault("CACHE_SWEEP_INTERVAL", "60s")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT", KafkaClientKafkaGo)
	v.SetDefault("KAFKA_ENSURE_TOPICS", true)
	v.SetDefault("METRICS_SYSTEM_INTERVAL", "15s")
}

// Load загружает конфигурацию из переменных окружения.
// Вне production сначала подгружается envFile (если он есть).
func Load(envFile string) (*Config, error) {
	if envFile != "" && os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		},
		Webhook: WebhookConfig{
			RefetchMaxElapsed: v.GetDuration("WEBHOOK_REFETCH_MAX_ELAPSED"),
			ProcessTimeout:    v.GetDuration("WEBHOOK_PROCESS_TIMEOUT"),
		},
		Cache: CacheConfig{
			Driver:        strings.ToLower(v.GetString("CACHE_DRIVER")),
			SweepInterval: v.GetDuration("CACHE_SWEEP_INTERVAL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Database: DatabaseConfig{
			Enabled: v.GetBool("DATABASE_ENABLED"),
			DSN:     v.GetString("DATABASE_DSN"),
		},
		Kafka: KafkaConfig{
			Enabled:     v.GetBool("KAFKA_ENABLED"),
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			Client:      strings.ToLower(v.GetString("KAFKA_CLIENT")),
			EnsureTopic: v.GetBool("KAFKA_ENSURE_TOPICS"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
		},
		Metrics: MetricsConfig{
			SystemInterval: v.GetDuration("METRICS_SYSTEM_INTERVAL"),
		},
	}

	return cfg, nil
}

// Validate проверяет секреты и согласованность настроек. Возвращает *domain.ConfigurationError.
func (c *Config) Validate() error {
	if err := stripe.ValidateSecretKey(c.Stripe.SecretKey); err != nil {
		return err
	}
	if err := stripe.ValidateWebhookSecret(c.Stripe.WebhookSecret); err != nil {
		return err
	}

	if c.Webhook.ProcessTimeout > MaxWebhookProcessTimeout {
		return domain.NewConfigurationError("WEBHOOK_PROCESS_TIMEOUT", fmt.Sprintf("must not exceed %s", MaxWebhookProcessTimeout))
	}
	if c.Webhook.RefetchMaxElapsed > 0 && c.Webhook.ProcessTimeout > 0 && 2*c.Webhook.RefetchMaxElapsed >= c.Webhook.ProcessTimeout {
		return domain.NewConfigurationError("WEBHOOK_REFETCH_MAX_ELAPSED", "two refetches must fit into WEBHOOK_PROCESS_TIMEOUT")
	}

	switch c.Cache.Driver {
	case CacheDriverMemory:
	case CacheDriverRedis:
		if c.Redis.Addr == "" {
			return domain.NewConfigurationError("REDIS_ADDR", "is required for the redis cache driver")
		}
	default:
		return domain.NewConfigurationError("CACHE_DRIVER", fmt.Sprintf("unsupported driver %q", c.Cache.Driver))
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return domain.NewConfigurationError("DATABASE_DSN", "is required when DATABASE_ENABLED is set")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return domain.NewConfigurationError("KAFKA_BROKERS", "at least one broker is required")
		}
		if c.Kafka.Client != KafkaClientKafkaGo && c.Kafka.Client != KafkaClientSarama {
			return domain.NewConfigurationError("KAFKA_CLIENT", fmt.Sprintf("unsupported client %q", c.Kafka.Client))
		}
	}

	if c.Server.Port == "" {
		return domain.NewConfigurationError("PORT", "is required")
	}
	return nil
}

// IsProduction сообщает, запущено ли приложение в production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
