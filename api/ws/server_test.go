package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riptide/domain/orderbook"
	"riptide/service"
)

func jsonDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	book, err := orderbook.New()
	require.NoError(t, err)
	book.TrackStats(true)
	svc := service.NewOrderService(book, nil, nil)
	ts := httptest.NewServer(NewServer(svc).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postOrder(t *testing.T, ts *httptest.Server, body string) orderResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/orders", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out orderResponse
	require.NoError(t, jsonDecode(resp.Body, &out))
	return out
}

func TestPlaceAndBook(t *testing.T) {
	ts := newTestServer(t)

	out := postOrder(t, ts, `{"kind":"limit","id":"1","side":"ask","qty":3,"price":120}`)
	assert.Equal(t, orderbook.EventPlaced, out.Event.Kind)
	assert.Equal(t, "0000000000000000"+"0000000000000001", out.OrderID)

	resp, err := http.Get(ts.URL + "/book?levels=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var depth orderbook.BookDepth
	require.NoError(t, jsonDecode(resp.Body, &depth))
	require.Len(t, depth.Asks, 1)
	assert.Equal(t, 120.0, depth.Asks[0].Price)
	assert.Equal(t, 3.0, depth.Asks[0].Qty)
	assert.Empty(t, depth.Bids)
}

func TestMarketFillAndStats(t *testing.T) {
	ts := newTestServer(t)
	postOrder(t, ts, `{"kind":"limit","id":"1","side":"ask","qty":2,"price":100}`)

	out := postOrder(t, ts, `{"kind":"market","id":"2","side":"bid","qty":2}`)
	assert.Equal(t, orderbook.EventFilled, out.Event.Kind)
	assert.Equal(t, 2.0, out.Event.FilledQty)
	require.Len(t, out.Event.Fills, 1)
	assert.True(t, out.Event.Fills[0].TotalFill)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats statsResponse
	require.NoError(t, jsonDecode(resp.Body, &stats))
	assert.Equal(t, 2.0, stats.TradedVolume)
	require.NotNil(t, stats.LastTrade)
	assert.Equal(t, 100.0, stats.LastTrade.LastPrice)
	assert.Nil(t, stats.BestAsk)
}

func TestRejectionPassesThrough(t *testing.T) {
	ts := newTestServer(t)
	out := postOrder(t, ts, `{"kind":"cancel","id":"99"}`)
	assert.Equal(t, orderbook.EventRejected, out.Event.Kind)
	assert.Equal(t, orderbook.NotFound, out.Event.Reason)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []string{
		`{"kind":"iceberg","id":"1"}`,
		`{"kind":"limit","id":"1","side":"up","qty":1,"price":1}`,
		`not json`,
	} {
		resp, err := http.Post(ts.URL+"/orders", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestGeneratedID(t *testing.T) {
	ts := newTestServer(t)
	out := postOrder(t, ts, `{"kind":"limit","side":"bid","qty":1,"price":50}`)
	assert.Equal(t, orderbook.EventPlaced, out.Event.Kind)
	assert.Len(t, out.OrderID, 32)
}

func TestUUIDClientID(t *testing.T) {
	ts := newTestServer(t)
	out := postOrder(t, ts, `{"kind":"limit","id":"0b8cb3a2-6f1e-4f86-9c44-1f3e1a2b3c4d","side":"bid","qty":1,"price":50}`)
	assert.Equal(t, orderbook.EventPlaced, out.Event.Kind)
	assert.Equal(t, "0b8cb3a26f1e4f869c441f3e1a2b3c4d", out.OrderID)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the server a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)
	postOrder(t, ts, `{"kind":"limit","id":"7","side":"ask","qty":1,"price":99}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev orderbook.OrderEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, orderbook.EventPlaced, ev.Kind)
	assert.Equal(t, orderbook.ID(7), ev.ID)
}
