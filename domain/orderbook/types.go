package orderbook

import (
	"fmt"
	"strconv"
)

// --- Core Types ---

type Side uint8

const (
	Bid Side = iota
	Ask
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid", "buy":
		*s = Bid
	case "ask", "sell":
		*s = Ask
	default:
		return fmt.Errorf("orderbook: bad side %q", text)
	}
	return nil
}

// OrderID is a caller-supplied 128-bit unsigned identifier.
// It is comparable and usable as a map key.
type OrderID struct {
	Hi uint64
	Lo uint64
}

// ID builds an OrderID from a small integer. Mostly useful in tests
// and replay tooling; gateways usually map UUIDs onto the full width.
func ID(lo uint64) OrderID {
	return OrderID{Lo: lo}
}

func (id OrderID) String() string {
	if id.Hi == 0 {
		return fmt.Sprintf("%d", id.Lo)
	}
	return fmt.Sprintf("0x%016x%016x", id.Hi, id.Lo)
}

// MarshalText renders the id as fixed-width hex, the wire and storage
// form used by the outbox and the gateways.
func (id OrderID) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%016x%016x", id.Hi, id.Lo)), nil
}

// UnmarshalText accepts the 32-char hex form or a plain decimal.
func (id *OrderID) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) == 32 {
		hi, err := strconv.ParseUint(s[:16], 16, 64)
		if err != nil {
			return fmt.Errorf("orderbook: bad order id %q", s)
		}
		lo, err := strconv.ParseUint(s[16:], 16, 64)
		if err != nil {
			return fmt.Errorf("orderbook: bad order id %q", s)
		}
		id.Hi, id.Lo = hi, lo
		return nil
	}
	lo, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("orderbook: bad order id %q", s)
	}
	id.Hi, id.Lo = 0, lo
	return nil
}

// OrderKind tags the inbound command variants.
type OrderKind uint8

const (
	KindMarket OrderKind = iota
	KindLimit
	KindCancel
)

// Order is the inbound command: a closed tagged value. Price is only
// meaningful for limit orders, Qty and Side for market and limit.
type Order struct {
	Kind  OrderKind
	ID    OrderID
	Side  Side
	Qty   float64
	Price float64
}

// MarketOrder crosses at any price and never rests.
func MarketOrder(id OrderID, side Side, qty float64) Order {
	return Order{Kind: KindMarket, ID: id, Side: side, Qty: qty}
}

// LimitOrder crosses up to Price and rests any residual.
func LimitOrder(id OrderID, side Side, qty, price float64) Order {
	return Order{Kind: KindLimit, ID: id, Side: side, Qty: qty, Price: price}
}

// CancelOrder removes a resting order by id.
func CancelOrder(id OrderID) Order {
	return Order{Kind: KindCancel, ID: id}
}

// RejectReason classifies a rejected command. The zero value means
// "not rejected".
type RejectReason uint8

const (
	BadQty RejectReason = iota + 1
	BadPrice
	DuplicateID
	NotFound
)

func (r RejectReason) String() string {
	switch r {
	case BadQty:
		return "bad_qty"
	case BadPrice:
		return "bad_price"
	case DuplicateID:
		return "duplicate_id"
	case NotFound:
		return "not_found"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RejectReason) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bad_qty":
		*r = BadQty
	case "bad_price":
		*r = BadPrice
	case "duplicate_id":
		*r = DuplicateID
	case "not_found":
		*r = NotFound
	default:
		return fmt.Errorf("orderbook: bad reject reason %q", text)
	}
	return nil
}

// EventKind tags the outcome variants of Execute.
type EventKind uint8

const (
	EventUnfilled EventKind = iota
	EventPlaced
	EventPartiallyFilled
	EventFilled
	EventCanceled
	EventRejected
)

func (k EventKind) String() string {
	switch k {
	case EventUnfilled:
		return "unfilled"
	case EventPlaced:
		return "placed"
	case EventPartiallyFilled:
		return "partially_filled"
	case EventFilled:
		return "filled"
	case EventCanceled:
		return "canceled"
	case EventRejected:
		return "rejected"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unfilled":
		*k = EventUnfilled
	case "placed":
		*k = EventPlaced
	case "partially_filled":
		*k = EventPartiallyFilled
	case "filled":
		*k = EventFilled
	case "canceled":
		*k = EventCanceled
	case "rejected":
		*k = EventRejected
	default:
		return fmt.Errorf("orderbook: bad event kind %q", text)
	}
	return nil
}

// FillMetadata describes a single fill between a taker and a maker.
// When an order matches several resting orders, one value is produced
// per maker, in price/time priority order.
type FillMetadata struct {
	TakerID   OrderID `json:"taker_id"`
	MakerID   OrderID `json:"maker_id"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	TakerSide Side    `json:"taker_side"`
	// TotalFill is true iff this fill fully drained the maker.
	TotalFill bool `json:"total_fill"`
}

// OrderEvent is the result of executing one command. Kind selects the
// variant; FilledQty and Fills are set for the fill variants, Reason
// for rejections.
type OrderEvent struct {
	Kind      EventKind      `json:"kind"`
	ID        OrderID        `json:"id"`
	FilledQty float64        `json:"filled_qty,omitempty"`
	Fills     []FillMetadata `json:"fills,omitempty"`
	Reason    RejectReason   `json:"reason,omitempty"`
}

func unfilled(id OrderID) OrderEvent {
	return OrderEvent{Kind: EventUnfilled, ID: id}
}

func placed(id OrderID) OrderEvent {
	return OrderEvent{Kind: EventPlaced, ID: id}
}

func canceled(id OrderID) OrderEvent {
	return OrderEvent{Kind: EventCanceled, ID: id}
}

func rejected(id OrderID, reason RejectReason) OrderEvent {
	return OrderEvent{Kind: EventRejected, ID: id, Reason: reason}
}

func filled(id OrderID, qty float64, fills []FillMetadata) OrderEvent {
	return OrderEvent{Kind: EventFilled, ID: id, FilledQty: qty, Fills: fills}
}

func partiallyFilled(id OrderID, qty float64, fills []FillMetadata) OrderEvent {
	return OrderEvent{Kind: EventPartiallyFilled, ID: id, FilledQty: qty, Fills: fills}
}

// BookLevel is one aggregated price point in a depth snapshot.
type BookLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// BookDepth is a two-sided depth snapshot, best-first on both sides.
type BookDepth struct {
	Levels int         `json:"levels"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
}

// Trade summarizes the fills of the most recent matching event while
// stats tracking is enabled.
type Trade struct {
	TotalQty  float64 `json:"total_qty"`
	AvgPrice  float64 `json:"avg_price"`
	LastQty   float64 `json:"last_qty"`
	LastPrice float64 `json:"last_price"`
}
