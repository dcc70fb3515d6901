// Package service orchestrates the core components of the engine —
// orderbook, command log, and event outbox.
//
// It provides the single write entry point for submitting commands,
// decoupled from network transports like the WebSocket gateway and
// the Kafka ingest.
package service
