package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"riptide/api/ws"
	"riptide/config"
	"riptide/domain/orderbook"
	"riptide/infra/kafka"
	"riptide/infra/outbox"
	"riptide/infra/wal"
	"riptide/jobs/broadcaster"
	"riptide/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---------------- Command WAL ----------------

	commandLog, err := wal.Open(wal.Config{
		Dir:         cfg.WALDir,
		SegmentSize: cfg.WALSegmentSize,
	})
	if err != nil {
		log.Fatalf("command WAL init failed: %v", err)
	}
	defer commandLog.Close()

	// ---------------- Event Outbox ----------------

	out, err := outbox.Open(cfg.OutboxDir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer out.Close()

	// ---------------- Domain ----------------

	book, err := orderbook.NewWithConfig(orderbook.Config{
		Digits:        cfg.Digits,
		ArenaCapacity: cfg.ArenaCapacity,
		QueueCapacity: cfg.QueueCapacity,
	})
	if err != nil {
		log.Fatalf("orderbook init failed: %v", err)
	}
	book.TrackStats(cfg.TrackStats)

	// ---------------- WAL REPLAY ----------------

	if _, err := service.ReplayFromWAL(cfg.WALDir, book); err != nil {
		log.Fatalf("WAL replay failed: %v", err)
	}

	// ---------------- Service ----------------

	svc := service.NewOrderService(book, commandLog, out)

	// ---------------- Background Jobs ----------------

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.KafkaEnabled() {
		bc, err := broadcaster.New(out, cfg.Brokers, cfg.EventTopic, cfg.BroadcastInterval)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		go bc.Run(ctx)

		ingest := kafka.NewIngest(cfg.Brokers, cfg.CommandTopic, cfg.ConsumerGroup, svc)
		defer ingest.Close()
		go ingest.Run(ctx)
	} else {
		log.Println("no Kafka brokers configured; broadcaster and ingest disabled")
	}

	// ---------------- HTTP / WebSocket ----------------

	gateway := ws.NewServer(svc)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: gateway.Routes()}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Shutdown(context.Background())
	}()

	log.Printf("riptide engine listening on %s (digits=%d)", cfg.ListenAddr, cfg.Digits)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server exited: %v", err)
	}
}
