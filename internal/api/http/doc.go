// Package http holds the REST surface of the coordinator: session
// lifecycle, event injection and health. Remote worker transport lives in
// the ws package; this one serves the embedding layer.
package http
