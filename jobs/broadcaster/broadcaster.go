package broadcaster

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"riptide/infra/outbox"
)

// Broadcaster drains the event outbox into a Kafka topic. Delivery is
// at-least-once: entries are marked SENT before the produce and ACKED
// only after the broker confirms, so an interrupted run is retried on
// the next sweep.
type Broadcaster struct {
	out      *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	out *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		out:      out,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run sweeps the outbox until ctx is done. It blocks; callers start
// it in its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	log.Println("[broadcaster] started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[broadcaster] stopped")
			return
		case <-ticker.C:
			b.sweepOnce()
		}
	}
}

func (b *Broadcaster) sweepOnce() {
	_ = b.out.ScanPending(func(rec outbox.Record) error {
		if err := b.out.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(keyFor(rec.Seq)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			log.Printf("[broadcaster] produce seq=%d failed: %v", rec.Seq, err)
			return nil // retry on the next sweep
		}

		return b.out.MarkAcked(rec.Seq)
	})

	if n, err := b.out.Sweep(); err == nil && n > 0 {
		log.Printf("[broadcaster] swept %d acked events", n)
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

func keyFor(seq uint64) string {
	// Keyed by sequence number. Every event gets its own key, so on a
	// topic with several partitions events spread across partitions and
	// their relative order is not preserved.
	return "evt-" + strconv.FormatUint(seq, 10)
}
