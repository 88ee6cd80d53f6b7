// Package events relays local interaction events to the worker.
//
// The proxy listens for a fixed allow-listed set of event types, stamps the
// gesture clock, serializes a minimal scalar-only representation and fires
// it at the worker with no acknowledgment: at-most-once per physical event,
// delivered in the order events fired on the coordinator's event loop. It
// also synthesizes clicks from short taps and suppresses the duplicate
// native click that follows.
package events
