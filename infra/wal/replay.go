package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReplayHandler consumes one decoded record.
type ReplayHandler func(*Record) error

// Replay streams every record in the directory in sequence order and
// returns the last sequence seen. A torn or corrupt frame anywhere in
// the newest segment ends the replay cleanly at that frame, and any
// records after it are not replayed; in an earlier segment it is an
// error.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	segments, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	for i, idx := range segments {
		tail := i == len(segments)-1
		f, err := os.Open(segmentPath(dir, idx))
		if err != nil {
			return lastSeq, err
		}

		for {
			rec, err := readRecord(f)
			if err != nil {
				if err == io.EOF {
					break
				}
				if tail && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errBadChecksum)) {
					break
				}
				_ = f.Close()
				return lastSeq, err
			}

			if rec.Seq <= lastSeq {
				_ = f.Close()
				return lastSeq, fmt.Errorf("wal: non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq

			if err := fn(rec); err != nil {
				_ = f.Close()
				return lastSeq, err
			}
		}
		_ = f.Close()
	}

	return lastSeq, nil
}

var errBadChecksum = errors.New("wal: crc mismatch")

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	if !checksumValid(append(header, payload...), crc) {
		return nil, errBadChecksum
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
