package service

import (
	"fmt"
	"log"

	"riptide/domain/orderbook"
	"riptide/infra/wal"
)

/*
ReplayFromWAL rebuilds in-memory state from the command log.

IMPORTANT:
- This MUST run before accepting traffic.
- The outbox is NOT replayed; the broadcaster resumes it on its own.
*/
func ReplayFromWAL(dir string, book *orderbook.OrderBook) (lastSeq uint64, err error) {
	lastSeq, err = wal.Replay(dir, func(rec *wal.Record) error {
		cmd, err := wal.DecodeCommand(rec)
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		// Rejected commands were rejected the first time around too;
		// re-executing them is a no-op on the book.
		book.Execute(cmd)
		return nil
	})
	if err != nil {
		return lastSeq, err
	}

	log.Printf("[service] WAL replay completed (last seq = %d, resting = %d)", lastSeq, book.Resting())
	return lastSeq, nil
}
