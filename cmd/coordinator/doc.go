// Command coordinator runs the worker-DOM coordinator server: it hosts
// worker sessions, serves the session REST API, and accepts remote workers
// over WebSocket.
package main
