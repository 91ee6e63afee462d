package kafka

import (
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/IBM/sarama"
)

// Config конфигурация для Kafka
type Config struct {
	Brokers  []string
	ClientID string
	Producer ProducerConfig
}

// ProducerConfig конфигурация для продюсера
type ProducerConfig struct {
	MaxMessageBytes int
	Compression     sarama.CompressionCodec
	RequiredAcks    sarama.RequiredAcks
	MaxRetries      int
	Timeout         time.Duration // ожидание ответа брокера и сетевые таймауты
}

// NewConfig создает новую конфигурацию Kafka
func NewConfig(brokers []string) *Config {
	return &Config{
		Brokers:  brokers,
		ClientID: "stripe-sync",
		Producer: ProducerConfig{
			MaxMessageBytes: 1000000,
			Compression:     sarama.CompressionSnappy,
			RequiredAcks:    sarama.WaitForAll,
			MaxRetries:      2,
			Timeout:         3 * time.Second,
		},
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama для SyncProducer
func NewSaramaConfig(cfg *Config, log *logger.Logger) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V3_3_0_0
	saramaConfig.ClientID = cfg.ClientID

	saramaConfig.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	saramaConfig.Producer.Compression = cfg.Producer.Compression
	saramaConfig.Producer.RequiredAcks = cfg.Producer.RequiredAcks
	saramaConfig.Producer.Retry.Max = cfg.Producer.MaxRetries
	if cfg.Producer.Timeout > 0 {
		saramaConfig.Producer.Timeout = cfg.Producer.Timeout
		saramaConfig.Net.DialTimeout = cfg.Producer.Timeout
		saramaConfig.Net.ReadTimeout = cfg.Producer.Timeout
		saramaConfig.Net.WriteTimeout = cfg.Producer.Timeout
	}
	// SyncProducer требует оба канала
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	log.Debugw("Sarama config prepared", "clientID", cfg.ClientID, "brokers", cfg.Brokers)
	return saramaConfig
}
