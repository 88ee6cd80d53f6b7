// Package server wires the coordinator's HTTP surface: middleware stack,
// REST routes, the remote worker WebSocket endpoint, metrics exposition,
// and graceful shutdown of the session registry.
package server
