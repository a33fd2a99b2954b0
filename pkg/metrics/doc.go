/*
Package metrics exposes BerylDB's internal counters and gauges through
Prometheus, following the same package-scope-variable-plus-Collector shape
the rest of the ambient stack uses for logging and configuration.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                             │
	│  ┌───────────────────────────────────────────┐            │
	│  │          Package-scope Collectors          │            │
	│  │  - QueriesTotal, QueryDuration             │            │
	│  │  - FlusherQueueDepth, DispatcherQueueDepth │            │
	│  │  - DatabasesTotal, KeysTotal               │            │
	│  │  - BloomFalsePositives, BloomNegatives     │            │
	│  │  - ExpiresPendingTotal, FuturesPendingTotal│            │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │              Collector                       │          │
	│  │  - polls DatabaseSource/QueueSource/          │          │
	│  │    TimerSource every 15s                      │          │
	│  │  - Start()/Stop() via stopCh                  │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │         HTTP /metrics, /health, /ready        │          │
	│  └────────────────────────────────────────────┘            │
	└─────────────────────────────────────────────────────────────┘

# Query metrics

beryldb_queries_total{command,kind} counts every terminated Query by its
command name and the ErrorKind it settled on ("ok" for success). This is the
metric an operator watches to see which commands are producing
DBL_MISS_ARGS/DBL_NOT_FOUND at an unusual rate.

beryldb_query_duration_seconds{command} is a histogram of the time spent in
Run() on a flusher worker, recorded with the Timer helper below.

# Flusher and dispatcher metrics

beryldb_flusher_queue_depth and beryldb_dispatcher_queue_depth are gauges
sampled by the Collector; a consistently rising flusher queue depth means
the worker pool is undersized for the incoming query rate.

# Storage metrics

beryldb_databases_total and beryldb_keys_total{database} are sampled from
the DB Manager; beryldb_bloom_false_positives_total and
beryldb_bloom_negatives_total{database} are incremented directly by the
Physical Store as lookups happen.

# Timer subsystem metrics

beryldb_expires_pending_total and beryldb_futures_pending_total track the
size of the Expire and Future indexes; beryldb_expires_fired_total and
beryldb_futures_fired_total are counters incremented each time a Flush pass
fires an entry.

# Usage

	// queues adds DispatcherQueueDepth to the Flusher's two methods;
	// timers pairs the expire and future indexes' pending counts.
	collector := metrics.NewCollector(dbManager, queues, timers)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())

Timing a query:

	timer := metrics.NewTimer()
	q.Run()
	timer.ObserveDurationVec(metrics.QueryDuration, q.Name())
*/
package metrics
