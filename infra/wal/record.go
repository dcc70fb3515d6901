package wal

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"riptide/domain/orderbook"
)

// RecordType tags the command variant held in a record.
type RecordType uint8

const (
	RecordMarket RecordType = iota
	RecordLimit
	RecordCancel
)

// Record is one logged command. Seq is assigned by the log on append.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// NewRecord stamps a record for writing.
func NewRecord(t RecordType, data []byte) *Record {
	return &Record{
		Type: t,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Command payloads are fixed-width big-endian:
//
//	market/limit: [side:1][idHi:8][idLo:8][price:8][qty:8]
//	cancel:       [idHi:8][idLo:8]
const (
	orderPayloadSize  = 1 + 8 + 8 + 8 + 8
	cancelPayloadSize = 8 + 8
)

// EncodeCommand serializes an inbound command for the log.
func EncodeCommand(o orderbook.Order) (RecordType, []byte) {
	switch o.Kind {
	case orderbook.KindCancel:
		buf := make([]byte, cancelPayloadSize)
		binary.BigEndian.PutUint64(buf[0:8], o.ID.Hi)
		binary.BigEndian.PutUint64(buf[8:16], o.ID.Lo)
		return RecordCancel, buf
	case orderbook.KindMarket, orderbook.KindLimit:
		buf := make([]byte, orderPayloadSize)
		buf[0] = byte(o.Side)
		binary.BigEndian.PutUint64(buf[1:9], o.ID.Hi)
		binary.BigEndian.PutUint64(buf[9:17], o.ID.Lo)
		binary.BigEndian.PutUint64(buf[17:25], math.Float64bits(o.Price))
		binary.BigEndian.PutUint64(buf[25:33], math.Float64bits(o.Qty))
		if o.Kind == orderbook.KindMarket {
			return RecordMarket, buf
		}
		return RecordLimit, buf
	default:
		panic(fmt.Sprintf("wal: unknown order kind %d", o.Kind))
	}
}

// DecodeCommand reconstructs a command from a logged record.
func DecodeCommand(rec *Record) (orderbook.Order, error) {
	switch rec.Type {
	case RecordCancel:
		if len(rec.Data) != cancelPayloadSize {
			return orderbook.Order{}, fmt.Errorf("wal: cancel payload length %d", len(rec.Data))
		}
		id := orderbook.OrderID{
			Hi: binary.BigEndian.Uint64(rec.Data[0:8]),
			Lo: binary.BigEndian.Uint64(rec.Data[8:16]),
		}
		return orderbook.CancelOrder(id), nil
	case RecordMarket, RecordLimit:
		if len(rec.Data) != orderPayloadSize {
			return orderbook.Order{}, fmt.Errorf("wal: order payload length %d", len(rec.Data))
		}
		side := orderbook.Side(rec.Data[0])
		if side != orderbook.Bid && side != orderbook.Ask {
			return orderbook.Order{}, fmt.Errorf("wal: invalid side %d", rec.Data[0])
		}
		id := orderbook.OrderID{
			Hi: binary.BigEndian.Uint64(rec.Data[1:9]),
			Lo: binary.BigEndian.Uint64(rec.Data[9:17]),
		}
		price := math.Float64frombits(binary.BigEndian.Uint64(rec.Data[17:25]))
		qty := math.Float64frombits(binary.BigEndian.Uint64(rec.Data[25:33]))
		if rec.Type == RecordMarket {
			return orderbook.MarketOrder(id, side, qty), nil
		}
		return orderbook.LimitOrder(id, side, qty, price), nil
	default:
		return orderbook.Order{}, fmt.Errorf("wal: unknown record type %d", rec.Type)
	}
}
