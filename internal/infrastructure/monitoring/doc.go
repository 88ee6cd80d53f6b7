/*
Package monitoring provides Prometheus-based metrics for the coordinator.

# Overview

Tracks the mutation-synchronization pipeline end to end: sessions, queue
depth, mutations applied/deferred/dropped per variant, admission decisions,
sanitizer rejections, proxied events and WebSocket connections, plus the
usual HTTP request metrics.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record pipeline metrics
	metrics.IncMutationsApplied("childList")
	metrics.IncAdmissionRejections()

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
