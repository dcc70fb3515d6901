package outbox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"riptide/domain/orderbook"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one durable event awaiting delivery.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeValue(r Record) []byte {
	buf := make([]byte, 1+4+8+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeValue(seq uint64, b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("outbox: short record")
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[13:]...),
	}, nil
}

// -------------------- Outbox --------------------

// Outbox is a pebble-backed store of engine events with a delivery
// state machine: NEW -> SENT -> ACKED. The broadcaster drains it;
// ACKED entries are deleted on cleanup.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the point
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// PutEvent stores a freshly emitted event under its command sequence.
func (o *Outbox) PutEvent(seq uint64, ev orderbook.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	rec := Record{
		Seq:     seq,
		State:   StateNew,
		Payload: payload,
	}
	return o.db.Set(keyFor(seq), encodeValue(rec), pebble.Sync)
}

// MarkSent records a delivery attempt.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.transition(seq, StateSent)
}

// MarkAcked records broker acknowledgement.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.transition(seq, StateAcked)
}

// MarkFailed parks an undeliverable event.
func (o *Outbox) MarkFailed(seq uint64) error {
	return o.transition(seq, StateFailed)
}

func (o *Outbox) transition(seq uint64, state State) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries++
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeValue(rec), pebble.Sync)
}

// Get returns the record stored under seq.
func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeValue(seq, val)
}

// Delete removes an entry, typically after it has been ACKED.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanPending visits every NEW and SENT record in sequence order.
// SENT records are included so deliveries interrupted before the ack
// are retried.
func (o *Outbox) ScanPending(fn func(rec Record) error) error {
	return o.scan(func(rec Record) error {
		if rec.State != StateNew && rec.State != StateSent {
			return nil
		}
		return fn(rec)
	})
}

// Sweep deletes every ACKED record and returns how many were removed.
func (o *Outbox) Sweep() (int, error) {
	var acked []uint64
	if err := o.scan(func(rec Record) error {
		if rec.State == StateAcked {
			acked = append(acked, rec.Seq)
		}
		return nil
	}); err != nil {
		return 0, err
	}
	for _, seq := range acked {
		if err := o.Delete(seq); err != nil {
			return 0, err
		}
	}
	return len(acked), nil
}

func (o *Outbox) scan(fn func(rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeValue(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "evt/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
