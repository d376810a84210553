package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// EntryRecordedEvent is the message emitted after a ledger entry commits.
type EntryRecordedEvent struct {
	EntryID      string          `json:"entry_id"`
	CustomerID   string          `json:"customer_id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// Publisher implements ports.EventPublisher on a Kafka topic. Messages are
// keyed by customer id so entries for one customer stay ordered within a
// partition.
type Publisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: log,
	}
}

// PublishEntryRecorded emits an EntryRecordedEvent for a committed entry.
func (p *Publisher) PublishEntryRecorded(ctx context.Context, entry *domain.LedgerEntry, balanceAfter decimal.Decimal) error {
	event := EntryRecordedEvent{
		EntryID:      entry.ID.String(),
		CustomerID:   entry.CustomerID.String(),
		Type:         string(entry.Type),
		Amount:       entry.Amount,
		BalanceAfter: balanceAfter,
		RecordedAt:   entry.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal entry event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CustomerID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("write entry event: %w", err)
	}

	p.log.Debug().
		Str("entry_id", event.EntryID).
		Str("topic", p.writer.Topic).
		Msg("entry event published")

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
