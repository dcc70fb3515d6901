package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"

	"riptide/domain/orderbook"
)

// Submitter is the slice of the order service the ingest needs.
type Submitter interface {
	Submit(orderbook.Order) (orderbook.OrderEvent, error)
}

// command is the JSON shape accepted on the command topic.
type command struct {
	Kind  string            `json:"kind"` // market | limit | cancel
	ID    orderbook.OrderID `json:"id"`
	Side  orderbook.Side    `json:"side"`
	Qty   float64           `json:"qty"`
	Price float64           `json:"price"`
}

func (c command) toOrder() (orderbook.Order, error) {
	switch c.Kind {
	case "market":
		return orderbook.MarketOrder(c.ID, c.Side, c.Qty), nil
	case "limit":
		return orderbook.LimitOrder(c.ID, c.Side, c.Qty, c.Price), nil
	case "cancel":
		return orderbook.CancelOrder(c.ID), nil
	default:
		return orderbook.Order{}, errors.New("kafka: unknown command kind " + c.Kind)
	}
}

// Ingest consumes order commands from a Kafka topic and feeds them to
// the order service. Offsets are committed only after the command has
// been executed and logged, so a crash replays rather than drops.
type Ingest struct {
	reader *kafka.Reader
	svc    Submitter
}

func NewIngest(brokers []string, topic, groupID string, svc Submitter) *Ingest {
	return &Ingest{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		svc: svc,
	}
}

// Run blocks consuming until ctx is done.
func (in *Ingest) Run(ctx context.Context) {
	log.Println("[ingest] started")

	for {
		msg, err := in.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Println("[ingest] stopped")
				return
			}
			log.Printf("[ingest] fetch failed: %v", err)
			continue
		}

		var cmd command
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			// A malformed message can never succeed; skip past it.
			log.Printf("[ingest] bad command at offset %d: %v", msg.Offset, err)
			_ = in.reader.CommitMessages(ctx, msg)
			continue
		}
		order, err := cmd.toOrder()
		if err != nil {
			log.Printf("[ingest] bad command at offset %d: %v", msg.Offset, err)
			_ = in.reader.CommitMessages(ctx, msg)
			continue
		}

		if _, err := in.svc.Submit(order); err != nil {
			// Durable-log failure: leave the offset uncommitted and retry.
			log.Printf("[ingest] submit failed: %v", err)
			continue
		}
		if err := in.reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("[ingest] commit failed: %v", err)
		}
	}
}

func (in *Ingest) Close() error {
	return in.reader.Close()
}
