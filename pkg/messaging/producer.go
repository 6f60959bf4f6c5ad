// Package messaging publishes control plane notifications to the message
// broker. Delivery is best effort; a failed publish is logged, never
// propagated to the operation that triggered it.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/openstack/zun-sub002/pkg/logger"
)

var log = logger.NewLogger("zun.messaging")

const flushTimeoutMs = 1000 * 5

type Options struct {
	BootstrapServers string
}

type Producer interface {
	Publish(ctx context.Context, topic string, message interface{})
	Close() error
}

type producer struct {
	producer *kafka.Producer
}

// NewProducer creates a new notification producer. The delivery report
// loop runs until ctx is cancelled.
func NewProducer(ctx context.Context, opts Options) (Producer, error) {
	kafkaProducer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": opts.BootstrapServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification producer: %w", err)
	}

	// Drain delivery reports so a flush on close does not count delivered
	// messages as unsent.
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("shutting down notification producer")
				return
			case e := <-kafkaProducer.Events():
				switch event := e.(type) {
				case *kafka.Message:
					if event.TopicPartition.Error != nil {
						log.Errorf("failed to deliver notification: %v", event.TopicPartition.Error)
					}
				case kafka.Error:
					log.Errorf("notification broker error: %v", event)
				}
			}
		}
	}()

	return &producer{
		producer: kafkaProducer,
	}, nil
}

// Publish enqueues a message to the given topic.
func (p *producer) Publish(ctx context.Context, topic string, message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("failed to serialize notification: %v", err)
		return
	}
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          payload,
	}, nil)
	if err != nil {
		log.Errorf("failed to enqueue notification to topic %s: %v", topic, err)
		return
	}
	log.Debugf("enqueued notification to topic %s", topic)
}

// Close flushes pending messages and closes the producer.
func (p *producer) Close() error {
	unsent := p.producer.Flush(flushTimeoutMs)
	p.producer.Close()
	if unsent > 0 {
		return fmt.Errorf("failed to flush %d unsent notifications", unsent)
	}
	return nil
}
