package ws

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"riptide/domain/orderbook"
)

// Engine is the slice of the order service the gateway needs.
type Engine interface {
	Submit(orderbook.Order) (orderbook.OrderEvent, error)
	Depth(maxLevels int) orderbook.BookDepth
	BestBid() (float64, bool)
	BestAsk() (float64, bool)
	Spread() (float64, bool)
	MidPrice() (float64, bool)
	LastTrade() (orderbook.Trade, bool)
	TradedVolume() float64
}

// Server exposes the engine over HTTP and WebSocket.
type Server struct {
	svc      Engine
	events   *eventHub
	upgrader websocket.Upgrader
}

func NewServer(svc Engine) *Server {
	return &Server{
		svc:      svc,
		events:   newEventHub(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Routes returns the gateway's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", s.handleOrder)
	mux.HandleFunc("/book", s.handleBook)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws/events", s.handleEventStream)
	return mux
}

// orderRequest is the inbound command shape. An empty id asks the
// gateway to assign one.
type orderRequest struct {
	ID    string  `json:"id,omitempty"`
	Kind  string  `json:"kind"` // market | limit | cancel
	Side  string  `json:"side,omitempty"`
	Qty   float64 `json:"qty,omitempty"`
	Price float64 `json:"price,omitempty"`
}

type orderResponse struct {
	OrderID string               `json:"order_id"`
	Event   orderbook.OrderEvent `json:"event"`
}

type statsResponse struct {
	BestBid      *float64         `json:"best_bid,omitempty"`
	BestAsk      *float64         `json:"best_ask,omitempty"`
	Spread       *float64         `json:"spread,omitempty"`
	MidPrice     *float64         `json:"mid_price,omitempty"`
	LastTrade    *orderbook.Trade `json:"last_trade,omitempty"`
	TradedVolume float64          `json:"traded_volume"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := req.toOrder()
	if err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := s.svc.Submit(order)
	if err != nil {
		log.Printf("[ws] submit failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.events.broadcast(ev)

	idText, _ := order.ID.MarshalText()
	writeJSON(w, orderResponse{OrderID: string(idText), Event: ev})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	levels := 0
	if v := r.URL.Query().Get("levels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad levels", http.StatusBadRequest)
			return
		}
		levels = n
	}
	writeJSON(w, s.svc.Depth(levels))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if v, ok := s.svc.BestBid(); ok {
		resp.BestBid = &v
	}
	if v, ok := s.svc.BestAsk(); ok {
		resp.BestAsk = &v
	}
	if v, ok := s.svc.Spread(); ok {
		resp.Spread = &v
	}
	if v, ok := s.svc.MidPrice(); ok {
		resp.MidPrice = &v
	}
	if t, ok := s.svc.LastTrade(); ok {
		resp.LastTrade = &t
	}
	resp.TradedVolume = s.svc.TradedVolume()
	writeJSON(w, resp)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.events.subscribe(256)
	log.Printf("[ws] event stream connected (subscribers=%d)", s.events.count())
	defer func() {
		s.events.unsubscribe(id)
		log.Printf("[ws] event stream closed (subscribers=%d)", s.events.count())
	}()

	// Drain (and discard) client frames so pings and closes are seen.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (r orderRequest) toOrder() (orderbook.Order, error) {
	id, err := parseOrMintID(r.ID)
	if err != nil {
		return orderbook.Order{}, err
	}

	switch r.Kind {
	case "cancel":
		return orderbook.CancelOrder(id), nil
	case "market", "limit":
		var side orderbook.Side
		if err := side.UnmarshalText([]byte(r.Side)); err != nil {
			return orderbook.Order{}, err
		}
		if r.Kind == "market" {
			return orderbook.MarketOrder(id, side, r.Qty), nil
		}
		return orderbook.LimitOrder(id, side, r.Qty, r.Price), nil
	default:
		return orderbook.Order{}, errors.New("unknown order kind " + strconv.Quote(r.Kind))
	}
}

// parseOrMintID accepts a UUID, the 32-char hex form, or a decimal;
// an empty string mints a fresh UUID-backed id.
func parseOrMintID(s string) (orderbook.OrderID, error) {
	if s == "" {
		return idFromUUID(uuid.New()), nil
	}
	if u, err := uuid.Parse(s); err == nil {
		return idFromUUID(u), nil
	}
	var id orderbook.OrderID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return orderbook.OrderID{}, err
	}
	return id, nil
}

func idFromUUID(u uuid.UUID) orderbook.OrderID {
	return orderbook.OrderID{
		Hi: binary.BigEndian.Uint64(u[0:8]),
		Lo: binary.BigEndian.Uint64(u[8:16]),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ws] encode response: %v", err)
	}
}
