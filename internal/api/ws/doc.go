// Package ws exposes the worker protocol over WebSocket so workers can run
// out of process. One connection is one worker: the socket carries the same
// init/init-result/mutate/event envelopes the in-process runtime uses, and
// closing it terminates the session's worker side.
package ws
