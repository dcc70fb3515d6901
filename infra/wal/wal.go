package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const headerSize = 1 + 8 + 8 + 4

// Config controls the command log layout.
type Config struct {
	Dir         string
	SegmentSize int64
}

// WAL is a segmented, CRC-framed command log. Frames are
// [type:1][seq:8][time:8][len:4][payload][crc32:4] with the checksum
// covering header and payload.
type WAL struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
	seq      uint64
}

// Open resumes an existing log directory or starts a fresh one. The
// next appended record continues the sequence found on disk.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	segments, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	w := &WAL{dir: cfg.Dir, segSize: cfg.SegmentSize}
	if n := len(segments); n > 0 {
		w.segIndex = segments[n-1]
		lastSeq, err := maxSeqInSegments(cfg.Dir, segments)
		if err != nil {
			return nil, err
		}
		w.seq = lastSeq
	}

	seg, err := openSegment(cfg.Dir, w.segIndex)
	if err != nil {
		return nil, err
	}
	w.current = seg
	return w, nil
}

// Append frames and writes one record, assigning it the next sequence
// number. The write is not synced here; Sync, a segment rotation or
// Close flushes it to stable storage.
func (w *WAL) Append(r *Record) error {
	r.Seq = w.seq + 1

	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)
	crc := checksum(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	w.seq++

	if w.segSize > 0 && w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// LastSeq returns the sequence number of the most recent record.
func (w *WAL) LastSeq() uint64 { return w.seq }

// Sync flushes the current segment to stable storage.
func (w *WAL) Sync() error {
	return w.current.sync()
}

// Close syncs and closes the current segment.
func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// TruncateBefore removes whole segments whose records are all at or
// below seq, after a snapshot has made them redundant.
func (w *WAL) TruncateBefore(seq uint64) error {
	segments, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	for _, idx := range segments {
		if idx == w.segIndex {
			continue
		}
		path := segmentPath(w.dir, idx)
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

func listSegments(dir string) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	indexes := make([]int, 0, len(paths))
	for _, p := range paths {
		var idx int
		if _, err := fmt.Sscanf(filepath.Base(p), "segment-%06d.wal", &idx); err == nil {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)
	return indexes, nil
}
