package service

import (
	"sync"

	"riptide/domain/orderbook"
	"riptide/infra/outbox"
	"riptide/infra/wal"
)

/*
OrderService is the ONLY write entry point into the system.

All coordination between:
- domain (orderbook)
- infra (wal, outbox)
happens here.
*/

type OrderService struct {
	mu   sync.Mutex
	book *orderbook.OrderBook
	log  *wal.WAL
	out  *outbox.Outbox
}

// NewOrderService wires all dependencies. The log and outbox may be
// nil for embedded or test use; the engine then runs memory-only.
func NewOrderService(
	book *orderbook.OrderBook,
	log *wal.WAL,
	out *outbox.Outbox,
) *OrderService {
	return &OrderService{
		book: book,
		log:  log,
		out:  out,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Submit logs a command, executes it against the book, and persists
// the resulting event to the outbox. The mutex is the single
// serialization point in front of the single-writer engine.
func (s *OrderService) Submit(cmd orderbook.Order) (orderbook.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64
	if s.log != nil {
		typ, data := wal.EncodeCommand(cmd)
		rec := wal.NewRecord(typ, data)
		if err := s.log.Append(rec); err != nil {
			return orderbook.OrderEvent{}, err
		}
		seq = rec.Seq
	}

	ev := s.book.Execute(cmd)

	if s.out != nil {
		if err := s.out.PutEvent(seq, ev); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// BestBid returns the highest bid price, if present.
func (s *OrderService) BestBid() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.BestBid()
}

// BestAsk returns the lowest ask price, if present.
func (s *OrderService) BestAsk() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.BestAsk()
}

// Spread returns best ask minus best bid, if both are present.
func (s *OrderService) Spread() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Spread()
}

// MidPrice returns the bid/ask midpoint, if both are present.
func (s *OrderService) MidPrice() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.MidPrice()
}

// Depth returns an aggregated two-sided snapshot up to maxLevels.
func (s *OrderService) Depth(maxLevels int) orderbook.BookDepth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.DepthBoth(maxLevels)
}

// LastTrade returns the most recent trade while stats tracking is on.
func (s *OrderService) LastTrade() (orderbook.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.LastTrade()
}

// TradedVolume returns the cumulative traded quantity.
func (s *OrderService) TradedVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.TradedVolume()
}

// Sync flushes the command log.
func (s *OrderService) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return nil
	}
	return s.log.Sync()
}
