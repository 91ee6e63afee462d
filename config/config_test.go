package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dhoini/stripe-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidSecrets(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_4eC39HqLyjWDarjtT1zdp7dc")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc123")
}

func TestLoad_Defaults(t *testing.T) {
	setValidSecrets(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 8*time.Second, cfg.Webhook.ProcessTimeout)
	assert.Equal(t, 3*time.Second, cfg.Webhook.RefetchMaxElapsed)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setValidSecrets(t)
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_CLIENT", "sarama")
	t.Setenv("WEBHOOK_PROCESS_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, KafkaClientSarama, cfg.Kafka.Client)
	assert.Equal(t, 5*time.Second, cfg.Webhook.ProcessTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\n"), 0o600))

	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "publishable key", mutate: func(c *Config) { c.Stripe.SecretKey = "pk_test_abc" }, field: "STRIPE_SECRET_KEY"},
		{name: "empty webhook secret", mutate: func(c *Config) { c.Stripe.WebhookSecret = "" }, field: "STRIPE_WEBHOOK_SECRET"},
		{name: "unknown cache driver", mutate: func(c *Config) { c.Cache.Driver = "memcached" }, field: "CACHE_DRIVER"},
		{name: "database without dsn", mutate: func(c *Config) { c.Database.Enabled = true }, field: "DATABASE_DSN"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, field: "KAFKA_BROKERS"},
		{name: "unknown kafka client", mutate: func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Client = "franz" }, field: "KAFKA_CLIENT"},
		{name: "process timeout too long", mutate: func(c *Config) { c.Webhook.ProcessTimeout = 30 * time.Second }, field: "WEBHOOK_PROCESS_TIMEOUT"},
		{name: "refetch budget exceeds process timeout", mutate: func(c *Config) {
			c.Webhook = WebhookConfig{RefetchMaxElapsed: 5 * time.Second, ProcessTimeout: 8 * time.Second}
		}, field: "WEBHOOK_REFETCH_MAX_ELAPSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server: ServerConfig{Port: "8080"},
				Stripe: StripeConfig{SecretKey: "sk_live_abc123", WebhookSecret: "whsec_abc123"},
				Cache:  CacheConfig{Driver: CacheDriverMemory},
				Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, Client: KafkaClientKafkaGo},
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.ErrorIs(t, err, domain.ErrMisconfigured)
		})
	}
}
