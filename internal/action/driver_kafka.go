package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// KafkaConfig configures KafkaDriver.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaDriver produces measurements to a Kafka topic, keyed by the
// measurement's millisecond timestamp (spec.md 6). Two measurements
// produced within the same millisecond share a key; the dispatch id
// travels in the JSON payload.
type KafkaDriver struct {
	cfg      KafkaConfig
	producer sarama.SyncProducer
}

func NewKafkaDriver(cfg KafkaConfig) *KafkaDriver {
	return &KafkaDriver{cfg: cfg}
}

func (d *KafkaDriver) Initialize(ctx context.Context) error {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(d.cfg.Brokers, conf)
	if err != nil {
		return fmt.Errorf("action/kafka: new producer: %w", err)
	}
	d.producer = producer
	return nil
}

func (d *KafkaDriver) Dispatch(ctx context.Context, m Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("action/kafka: marshal measurement: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", m.TimestampMs)),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err = d.producer.SendMessage(msg)
	return err
}

func (d *KafkaDriver) HealthCheck(ctx context.Context) error {
	if d.producer == nil {
		return fmt.Errorf("action/kafka: producer not initialized")
	}
	return nil
}

func (d *KafkaDriver) Shutdown(ctx context.Context) error {
	if d.producer == nil {
		return nil
	}
	return d.producer.Close()
}
