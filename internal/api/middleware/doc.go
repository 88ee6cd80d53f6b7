// Package middleware holds the gin middleware shared by the coordinator's
// HTTP surface: CORS and per-IP rate limiting.
package middleware
