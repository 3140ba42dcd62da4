package queue

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

const flushTimeoutMs = 5000

var _ ContactQueue = (*KafkaContactQueue)(nil)

// KafkaContactQueue publishes contact events keyed by primary contact id, so
// every event of one cluster lands on the same partition.
type KafkaContactQueue struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaContactQueue(brokers, topic string) (*KafkaContactQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, err
	}

	return &KafkaContactQueue{producer: producer, topic: topic}, nil
}

func (k *KafkaContactQueue) Publish(ctx context.Context, event *ContactEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.FormatUint(uint64(event.PrimaryContactID), 10)),
		Value:          value,
		Headers:        []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return nil
		}
		if msg.TopicPartition.Error != nil {
			return msg.TopicPartition.Error
		}
		logrus.Debugf("published %s for contact %d to %v", event.Type, event.PrimaryContactID, msg.TopicPartition)
		return nil
	}
}

func (k *KafkaContactQueue) Close() error {
	if remaining := k.producer.Flush(flushTimeoutMs); remaining > 0 {
		logrus.Warnf("closing kafka producer with %d undelivered events", remaining)
	}
	k.producer.Close()
	return nil
}
