/*
Package metrics provides Prometheus metrics collection and exposition for
qworker, plus an HTTP health/readiness/liveness surface.

Metrics are registered once at package init and updated inline from the
queue, worker, registry client and discovery call sites — there is no
separate polling collector, since qworker has no durable cluster state to
scrape periodically.

# Metrics Catalog

Queue:

	qworker_queue_depth           gauge    current envelopes waiting
	qworker_queue_capacity        gauge    configured bound
	qworker_queue_enqueued_total  counter  successful enqueues
	qworker_queue_rejected_total  counter  enqueues rejected, queue full
	qworker_queue_consumers_busy  gauge    consumer goroutines executing
	qworker_immediate_inflight    gauge    immediate-mode executions running

Handlers:

	qworker_handler_requests_total{handler_id,outcome}  counter
	qworker_handler_duration_seconds{handler_id}        histogram

Transport:

	qworker_connections_total     counter  TCP connections accepted
	qworker_decode_errors_total   counter  envelopes that failed to decode

Registry and discovery:

	qworker_registry_push_failures_total    counter
	qworker_registry_remove_failures_total  counter
	qworker_discovery_peers_total           gauge
	qworker_discovery_announcements_total   counter

# Health

RegisterComponent/UpdateComponent record per-component health; the
worker server registers itself as "worker". GetHealth aggregates them for the
/health endpoint; GetReadiness additionally requires every registered
component to be healthy and at least one to be registered, for /ready.
LivenessHandler reports process uptime only and never fails.

# Usage

	timer := metrics.NewTimer()
	result, err := h(ctx, req)
	metrics.HandlerDuration.WithLabelValues(req.HandlerID).Observe(timer.Duration().Seconds())

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())
*/
package metrics
