// Package ledger records finalized sales.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// EventSaleFinalized is the type field of every published sale record.
const EventSaleFinalized = "sale.finalized"

// Sale is the record written when a table is checked out.
type Sale struct {
	ID           uuid.UUID       `json:"id"`
	Event        string          `json:"event"`
	TableID      string          `json:"table_id"`
	SalesRepID   uuid.UUID       `json:"sales_rep_id"`
	SalesRepName string          `json:"sales_rep_name"`
	Lines        []cart.Line     `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Profit       decimal.Decimal `json:"profit"`
	FinalizedAt  time.Time       `json:"finalized_at"`
}

// NewSale builds a sale from a checkout snapshot.
func NewSale(table string, rep cart.Rep, lines []cart.Line, at time.Time) Sale {
	s := Sale{
		ID:           uuid.New(),
		Event:        EventSaleFinalized,
		TableID:      table,
		SalesRepID:   rep.ID,
		SalesRepName: rep.Name,
		Lines:        lines,
		Total:        decimal.Zero,
		TotalCost:    decimal.Zero,
		Profit:       decimal.Zero,
		FinalizedAt:  at.UTC(),
	}
	for _, l := range lines {
		s.Total = s.Total.Add(l.TotalPrice)
		s.TotalCost = s.TotalCost.Add(l.TotalCost)
		s.Profit = s.Profit.Add(l.Profit)
	}
	return s
}

// Recorder persists finalized sales.
type Recorder interface {
	RecordSale(ctx context.Context, s Sale) error
	Close() error
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes sales as JSON keyed by table, so one table's
// sales stay ordered within a partition.
type KafkaRecorder struct {
	w messageWriter
}

// NewKafkaRecorder creates a recorder writing to topic on brokers.
func NewKafkaRecorder(brokers []string, topic string) *KafkaRecorder {
	return &KafkaRecorder{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.CRC32Balancer{},
		AllowAutoTopicCreation: true,
	}}
}

func (r *KafkaRecorder) RecordSale(ctx context.Context, s Sale) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	err = r.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.TableID),
		Value: value,
		Time:  s.FinalizedAt,
	})
	if err != nil {
		return fmt.Errorf("publish sale: %w", err)
	}
	return nil
}

func (r *KafkaRecorder) Close() error {
	return r.w.Close()
}

// LogRecorder writes sales to a zerolog logger. Used when no brokers are
// configured.
type LogRecorder struct {
	logger zerolog.Logger
}

// NewLogRecorder creates a recorder writing to logger.
func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) RecordSale(ctx context.Context, s Sale) error {
	r.logger.Info().
		Str("event", s.Event).
		Str("sale_id", s.ID.String()).
		Str("table", s.TableID).
		Str("rep", s.SalesRepID.String()).
		Int("lines", len(s.Lines)).
		Str("total", s.Total.StringFixed(2)).
		Str("profit", s.Profit.StringFixed(2)).
		Msg("sale finalized")
	return nil
}

func (r *LogRecorder) Close() error { return nil }
