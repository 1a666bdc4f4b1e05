// Package events publishes campaign lifecycle events to Kafka
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
)

// EventType names a lifecycle event
type EventType string

const (
	EventCampaignTriggered EventType = "whatsapp_campaign.triggered"
	EventCampaignCompleted EventType = "whatsapp_campaign.completed"
	EventCampaignFailed    EventType = "whatsapp_campaign.failed"
)

// CampaignEvent is the payload written to the events topic
type CampaignEvent struct {
	Type         EventType `json:"type"`
	CampaignID   uint      `json:"campaign_id"`
	AccountID    uint      `json:"account_id"`
	Status       string    `json:"status"`
	Sent         int64     `json:"sent"`
	Delivered    int64     `json:"delivered"`
	Failed       int64     `json:"failed"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event CampaignEvent) error
	Close() error
}

// KafkaConfig holds the producer settings
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// NewSyncProducer builds an idempotent producer that waits for all replicas
func NewSyncProducer(cfg KafkaConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.Return.Successes = true
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5

	prod, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return prod, nil
}

// KafkaPublisher writes events keyed by campaign id so a campaign's events stay ordered
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event CampaignEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.CampaignID), 10)),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to publish %s event for campaign %d: %w", event.Type, event.CampaignID, err)
		}
		return nil
	}
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, CampaignEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
