// Package orderbook implements the in-memory matching engine for a
// single instrument. It maintains two red-black trees of price levels
// for the bid and ask sides, FIFO queues per level, and an order-id
// index, matching inbound market and limit orders under strict
// price/time priority.
//
// The book is single-writer: every Execute call runs to completion
// against exclusively-owned state and returns exactly one event.
// Callers that need concurrency serialize in front of it.
package orderbook
