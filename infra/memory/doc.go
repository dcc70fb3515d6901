// Package memory provides allocation recycling for the hot path.
//
// The engine is single-writer with no concurrent readers, so the pool
// is deliberately unsynchronized; it is owned by the order book and
// touched only inside Execute.
package memory
