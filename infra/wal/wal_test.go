package wal

import (
	"os"
	"path/filepath"
	"testing"

	"riptide/domain/orderbook"
)

func openTestWAL(t *testing.T, dir string, segSize int64) *WAL {
	t.Helper()
	w, err := Open(Config{Dir: dir, SegmentSize: segSize})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return w
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)

	commands := []orderbook.Order{
		orderbook.LimitOrder(orderbook.ID(1), orderbook.Ask, 3.0, 120.0),
		orderbook.MarketOrder(orderbook.ID(2), orderbook.Bid, 4.0),
		orderbook.CancelOrder(orderbook.ID(1)),
	}
	for _, cmd := range commands {
		typ, data := EncodeCommand(cmd)
		if err := w.Append(NewRecord(typ, data)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayed []orderbook.Order
	lastSeq, err := Replay(dir, func(rec *Record) error {
		cmd, err := DecodeCommand(rec)
		if err != nil {
			return err
		}
		replayed = append(replayed, cmd)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if lastSeq != 3 {
		t.Errorf("lastSeq = %d, want 3", lastSeq)
	}
	if len(replayed) != len(commands) {
		t.Fatalf("replayed %d records, want %d", len(replayed), len(commands))
	}
	for i, cmd := range commands {
		if replayed[i] != cmd {
			t.Errorf("record %d = %+v, want %+v", i, replayed[i], cmd)
		}
	}
}

func TestSequenceResumesAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)
	typ, data := EncodeCommand(orderbook.MarketOrder(orderbook.ID(1), orderbook.Bid, 1.0))
	_ = w.Append(NewRecord(typ, data))
	_ = w.Append(NewRecord(typ, data))
	_ = w.Close()

	w = openTestWAL(t, dir, 1<<20)
	defer w.Close()
	if w.LastSeq() != 2 {
		t.Fatalf("LastSeq = %d, want 2", w.LastSeq())
	}
	rec := NewRecord(typ, data)
	if err := w.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.Seq != 3 {
		t.Errorf("resumed seq = %d, want 3", rec.Seq)
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	// Tiny segment size so every record rotates.
	w := openTestWAL(t, dir, 1)
	typ, data := EncodeCommand(orderbook.MarketOrder(orderbook.ID(1), orderbook.Bid, 1.0))
	for i := 0; i < 3; i++ {
		if err := w.Append(NewRecord(typ, data)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	_ = w.Close()

	segs, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil || len(segs) < 3 {
		t.Fatalf("expected at least 3 segments, got %v (err %v)", segs, err)
	}

	count := 0
	if _, err := Replay(dir, func(*Record) error { count++; return nil }); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if count != 3 {
		t.Errorf("replayed %d records across segments, want 3", count)
	}
}

func TestReplayStopsAtTornTail(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1<<20)
	typ, data := EncodeCommand(orderbook.MarketOrder(orderbook.ID(1), orderbook.Bid, 1.0))
	_ = w.Append(NewRecord(typ, data))
	_ = w.Append(NewRecord(typ, data))
	_ = w.Close()

	// Chop bytes off the last frame to simulate a crash mid-write.
	segs, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	path := segs[len(segs)-1]
	info, _ := os.Stat(path)
	if err := os.Truncate(path, info.Size()-5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	count := 0
	lastSeq, err := Replay(dir, func(*Record) error { count++; return nil })
	if err != nil {
		t.Fatalf("Replay after torn tail: %v", err)
	}
	if count != 1 || lastSeq != 1 {
		t.Errorf("replayed (%d, seq %d), want (1, 1)", count, lastSeq)
	}
}

func TestTruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, 1)
	typ, data := EncodeCommand(orderbook.MarketOrder(orderbook.ID(1), orderbook.Bid, 1.0))
	for i := 0; i < 4; i++ {
		_ = w.Append(NewRecord(typ, data))
	}
	if err := w.TruncateBefore(2); err != nil {
		t.Fatalf("TruncateBefore: %v", err)
	}
	_ = w.Close()

	count := 0
	if _, err := Replay(dir, func(*Record) error { count++; return nil }); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if count >= 4 {
		t.Errorf("expected truncation to drop old segments, still have %d records", count)
	}
}

func TestCommandCodecRejectsGarbage(t *testing.T) {
	if _, err := DecodeCommand(&Record{Type: RecordLimit, Data: []byte{1, 2, 3}}); err == nil {
		t.Error("expected error for short order payload")
	}
	if _, err := DecodeCommand(&Record{Type: RecordCancel, Data: make([]byte, 3)}); err == nil {
		t.Error("expected error for short cancel payload")
	}
	if _, err := DecodeCommand(&Record{Type: 99, Data: nil}); err == nil {
		t.Error("expected error for unknown record type")
	}
}
