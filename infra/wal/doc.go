// Package wal implements a segmented write-ahead log for inbound
// order commands. It supports CRC-validated frames, size-based
// rotation, replay iteration, and snapshot-driven truncation.
package wal
