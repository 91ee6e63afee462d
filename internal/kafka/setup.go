package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// RequiredTopics топики, в которые публикуют адаптеры синхронизации
func RequiredTopics() map[string]kafkaGo.TopicConfig {
	return map[string]kafkaGo.TopicConfig{
		TopicCustomerCreated: {
			Topic:             TopicCustomerCreated,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
		TopicSubscriptionUpdated: {
			Topic:             TopicSubscriptionUpdated,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
		TopicSubscriptionCanceled: {
			Topic:             TopicSubscriptionCanceled,
			NumPartitions:     2,
			ReplicationFactor: 1,
		},
	}
}

// EnsureKafkaTopics проверяет и создает необходимые топики Kafka.
func EnsureKafkaTopics(ctx context.Context, brokers []string, log *logger.Logger) error {
	requiredTopics := RequiredTopics()
	log.Infow("Ensuring Kafka topics exist...", "topics", getTopicNames(requiredTopics))

	if err := validateBroker(brokers); err != nil {
		log.Errorw("Invalid Kafka broker address", "error", err)
		return err
	}

	connCtx, cancelConn := context.WithTimeout(ctx, 15*time.Second)
	defer cancelConn()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", brokers[0])
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", brokers[0], "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	// создание топиков выполняется только через контроллер
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	controllerConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer controllerConn.Close()

	log.Debugw("Connected to Kafka controller", "address", controllerConn.RemoteAddr().String())

	partitions, err := controllerConn.ReadPartitions()
	if err != nil {
		log.Errorw("Failed to read partitions from Kafka", "error", err)
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}

	existingTopics := make(map[string]bool)
	for _, p := range partitions {
		existingTopics[p.Topic] = true
	}

	topicsToCreate := missingTopics(requiredTopics, existingTopics)
	if len(topicsToCreate) == 0 {
		log.Infow("All required topics already exist.")
		return nil
	}

	log.Infow("Attempting to create topics...", "topics", getTopicNamesFromConfig(topicsToCreate))
	if err := controllerConn.CreateTopics(topicsToCreate...); err != nil {
		if !errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Errorw("Failed to create topics", "error", err, "topics", getTopicNamesFromConfig(topicsToCreate))
			return fmt.Errorf("kafka create topics failed: %w", err)
		}
		log.Warnw("One or more topics already existed during creation attempt", "topics", getTopicNamesFromConfig(topicsToCreate))
	}

	log.Infow("Successfully created or verified topics", "topics", getTopicNamesFromConfig(topicsToCreate))
	return nil
}

func validateBroker(brokers []string) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	_, portStr, err := net.SplitHostPort(strings.TrimSpace(brokers[0]))
	if err != nil {
		return fmt.Errorf("invalid broker address %s: %w", brokers[0], err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("invalid broker port %s: %w", brokers[0], err)
	}
	return nil
}

// missingTopics возвращает конфигурации отсутствующих топиков в стабильном порядке
func missingTopics(required map[string]kafkaGo.TopicConfig, existing map[string]bool) []kafkaGo.TopicConfig {
	var out []kafkaGo.TopicConfig
	for _, name := range getTopicNames(required) {
		if !existing[name] {
			out = append(out, required[name])
		}
	}
	return out
}

func getTopicNames(topicMap map[string]kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(topicMap))
	for name := range topicMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getTopicNamesFromConfig(topicConfigs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(topicConfigs))
	for _, tc := range topicConfigs {
		names = append(names, tc.Topic)
	}
	return names
}
