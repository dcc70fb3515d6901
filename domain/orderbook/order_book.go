package orderbook

import (
	"fmt"
	"math"

	"riptide/infra/memory"
)

const (
	// DefaultArenaCapacity is the number of resting-order nodes
	// pre-allocated by the free pool.
	DefaultArenaCapacity = 10_000

	// DefaultQueueCapacity sizes per-level scratch buffers used by
	// depth snapshots.
	DefaultQueueCapacity = 10
)

// Config carries the recognized construction options.
type Config struct {
	// Digits is the decimal price resolution, in [0, 18].
	Digits uint
	// ArenaCapacity pre-reserves the resting-order pool and the
	// order-id index.
	ArenaCapacity int
	// QueueCapacity pre-reserves per-level snapshot buffers.
	QueueCapacity int
}

// Option mutates a Config.
type Option func(*Config)

func WithDigits(digits uint) Option {
	return func(c *Config) { c.Digits = digits }
}

func WithArenaCapacity(n int) Option {
	return func(c *Config) { c.ArenaCapacity = n }
}

func WithQueueCapacity(n int) Option {
	return func(c *Config) { c.QueueCapacity = n }
}

// orderRef is the index descriptor of a resting order: relation plus
// lookup, never ownership. The node handle lets cancel unlink in O(1)
// without disturbing time priority.
type orderRef struct {
	side Side
	tick uint64
	node *RestingOrder
}

// OrderBook continuously matches orders for a single instrument under
// strict price/time priority. It is single-writer: each Execute runs
// to completion against an exclusively-owned book; callers that need
// concurrency serialize in front of it.
type OrderBook struct {
	enc  TickEncoder
	bids *bookSide
	asks *bookSide

	index map[OrderID]orderRef
	pool  *memory.Pool[RestingOrder]

	queueCapacity int

	trackStats   bool
	tradedVolume float64
	lastTrade    Trade
	hasTrade     bool
}

// New constructs an empty book. Without options it uses 8 decimal
// digits of price precision.
func New(opts ...Option) (*OrderBook, error) {
	cfg := Config{
		Digits:        DefaultDigits,
		ArenaCapacity: DefaultArenaCapacity,
		QueueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig constructs an empty book from an explicit Config.
func NewWithConfig(cfg Config) (*OrderBook, error) {
	enc, err := NewTickEncoder(cfg.Digits)
	if err != nil {
		return nil, err
	}
	if cfg.ArenaCapacity < 0 || cfg.QueueCapacity < 0 {
		return nil, fmt.Errorf("orderbook: negative capacity hint")
	}
	return &OrderBook{
		enc:           enc,
		bids:          newBookSide(Bid),
		asks:          newBookSide(Ask),
		index:         make(map[OrderID]orderRef, cfg.ArenaCapacity),
		pool:          memory.NewPool[RestingOrder](cfg.ArenaCapacity),
		queueCapacity: cfg.QueueCapacity,
	}, nil
}

// Digits returns the configured decimal price resolution.
func (b *OrderBook) Digits() uint { return b.enc.Digits() }

// Encoder exposes the book's price encoder.
func (b *OrderBook) Encoder() TickEncoder { return b.enc }

// TrackStats toggles last-trade and volume tracking.
func (b *OrderBook) TrackStats(track bool) { b.trackStats = track }

// TradedVolume returns the total quantity traded while stats tracking
// was active.
func (b *OrderBook) TradedVolume() float64 { return b.tradedVolume }

// LastTrade returns the most recent trade recorded while stats
// tracking was active.
func (b *OrderBook) LastTrade() (Trade, bool) { return b.lastTrade, b.hasTrade }

// Resting returns the number of orders currently on the book.
func (b *OrderBook) Resting() int { return len(b.index) }

// Execute runs one command against the book and returns the single
// event describing the outcome. Failures travel inside the event,
// never out-of-band.
func (b *OrderBook) Execute(o Order) OrderEvent {
	ev := b.execute(o)
	if b.trackStats {
		b.recordTrade(ev)
	}
	return ev
}

func (b *OrderBook) execute(o Order) OrderEvent {
	switch o.Kind {
	case KindMarket:
		if !validQty(o.Qty) {
			return rejected(o.ID, BadQty)
		}
		assertSide(o.Side)
		return b.market(o)
	case KindLimit:
		if !validQty(o.Qty) {
			return rejected(o.ID, BadQty)
		}
		assertSide(o.Side)
		tick, err := b.enc.Encode(o.Price)
		if err != nil {
			return rejected(o.ID, BadPrice)
		}
		if _, dup := b.index[o.ID]; dup {
			return rejected(o.ID, DuplicateID)
		}
		return b.limit(o, tick)
	case KindCancel:
		return b.cancel(o.ID)
	default:
		panic(fmt.Sprintf("orderbook: unknown order kind %d", o.Kind))
	}
}

// market crosses at any price; the residual of a partially filled
// market order is discarded, never rested.
func (b *OrderBook) market(o Order) OrderEvent {
	fills, filledQty, remaining := b.matchAgainst(o.ID, o.Side, o.Qty, nil)
	switch {
	case len(fills) == 0:
		return unfilled(o.ID)
	case remaining == 0:
		return filled(o.ID, filledQty, fills)
	default:
		return partiallyFilled(o.ID, filledQty, fills)
	}
}

// limit crosses while the best opposite tick is crossable, then rests
// any residual at limitTick.
func (b *OrderBook) limit(o Order, limitTick uint64) OrderEvent {
	fills, filledQty, remaining := b.matchAgainst(o.ID, o.Side, o.Qty, &limitTick)
	if remaining == 0 {
		return filled(o.ID, filledQty, fills)
	}

	ro := b.pool.Get()
	*ro = RestingOrder{ID: o.ID, Tick: limitTick, Side: o.Side, Qty: remaining}
	b.sideOf(o.Side).Upsert(limitTick).Enqueue(ro)
	b.index[o.ID] = orderRef{side: o.Side, tick: limitTick, node: ro}

	if len(fills) == 0 {
		return placed(o.ID)
	}
	return partiallyFilled(o.ID, filledQty, fills)
}

// cancel removes a resting order by id. Cancel never produces fills.
func (b *OrderBook) cancel(id OrderID) OrderEvent {
	ref, ok := b.index[id]
	if !ok {
		return rejected(id, NotFound)
	}
	side := b.sideOf(ref.side)
	lvl := side.Level(ref.tick)
	lvl.Unlink(ref.node)
	if lvl.IsEmpty() {
		side.Remove(ref.tick)
	}
	delete(b.index, id)
	b.pool.Put(ref.node)
	return canceled(id)
}

// matchAgainst walks the opposite side best-first, draining level
// queues head-first. A nil limitTick crosses at any price. Fully
// drained makers are popped and dropped from the index; emptied
// levels are removed.
func (b *OrderBook) matchAgainst(
	takerID OrderID,
	takerSide Side,
	qty float64,
	limitTick *uint64,
) (fills []FillMetadata, filledQty, remaining float64) {
	opp := b.sideOf(takerSide.Opposite())
	remaining = qty

	for remaining > 0 {
		lvl := opp.Best()
		if lvl == nil {
			break
		}
		if limitTick != nil && !crosses(takerSide, lvl.Tick, *limitTick) {
			break
		}

		// Fill price is always the maker's resting price.
		price := b.enc.Decode(lvl.Tick)
		for remaining > 0 && !lvl.IsEmpty() {
			head := lvl.Head()
			drained, total := lvl.DrainHead(remaining)
			fills = append(fills, FillMetadata{
				TakerID:   takerID,
				MakerID:   head.ID,
				Qty:       drained,
				Price:     price,
				TakerSide: takerSide,
				TotalFill: total,
			})
			remaining -= drained
			filledQty += drained
			if total {
				lvl.PopHead()
				delete(b.index, head.ID)
				b.pool.Put(head)
			}
		}
		if lvl.IsEmpty() {
			opp.Remove(lvl.Tick)
		}
	}
	return fills, filledQty, remaining
}

func (b *OrderBook) sideOf(s Side) *bookSide {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// --- Read-only accessors ---

// BestBid returns the highest bid price, reporting absence.
func (b *OrderBook) BestBid() (float64, bool) {
	tick, ok := b.bids.BestTick()
	if !ok {
		return 0, false
	}
	return b.enc.Decode(tick), true
}

// BestAsk returns the lowest ask price, reporting absence.
func (b *OrderBook) BestAsk() (float64, bool) {
	tick, ok := b.asks.BestTick()
	if !ok {
		return 0, false
	}
	return b.enc.Decode(tick), true
}

// Spread returns best ask minus best bid when both sides are present.
func (b *OrderBook) Spread() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice returns the midpoint of the best bid and ask when both
// sides are present.
func (b *OrderBook) MidPrice() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Depth returns up to maxLevels aggregated price points on one side,
// best-first. maxLevels ≤ 0 means all levels.
func (b *OrderBook) Depth(side Side, maxLevels int) []BookLevel {
	assertSide(side)
	capHint := maxLevels
	if capHint <= 0 {
		capHint = b.queueCapacity
	}
	out := make([]BookLevel, 0, capHint)
	b.sideOf(side).WalkBestFirst(func(lvl *Level) bool {
		out = append(out, BookLevel{Price: b.enc.Decode(lvl.Tick), Qty: lvl.TotalQty})
		return maxLevels <= 0 || len(out) < maxLevels
	})
	return out
}

// DepthBoth snapshots both sides at once for market-data rendering.
func (b *OrderBook) DepthBoth(maxLevels int) BookDepth {
	return BookDepth{
		Levels: maxLevels,
		Bids:   b.Depth(Bid, maxLevels),
		Asks:   b.Depth(Ask, maxLevels),
	}
}

// EachResting visits every resting order, bids best-first then asks
// best-first, each level in time priority order.
func (b *OrderBook) EachResting(visit func(price float64, o *RestingOrder)) {
	walk := func(s *bookSide) {
		s.WalkBestFirst(func(lvl *Level) bool {
			price := b.enc.Decode(lvl.Tick)
			lvl.Each(func(o *RestingOrder) bool {
				visit(price, o)
				return true
			})
			return true
		})
	}
	walk(b.bids)
	walk(b.asks)
}

// --- internals ---

func (b *OrderBook) recordTrade(ev OrderEvent) {
	switch ev.Kind {
	case EventFilled, EventPartiallyFilled:
	default:
		return
	}
	b.tradedVolume += ev.FilledQty

	notional := 0.0
	for _, f := range ev.Fills {
		notional += f.Price * f.Qty
	}
	last := ev.Fills[len(ev.Fills)-1]
	b.lastTrade = Trade{
		TotalQty:  ev.FilledQty,
		AvgPrice:  notional / ev.FilledQty,
		LastQty:   last.Qty,
		LastPrice: last.Price,
	}
	b.hasTrade = true
}

func validQty(qty float64) bool {
	return qty > 0 && !math.IsInf(qty, 1)
}

func assertSide(s Side) {
	if s != Bid && s != Ask {
		panic(fmt.Sprintf("orderbook: invalid side %d", s))
	}
}
