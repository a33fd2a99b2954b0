package metrics

import "time"

// DatabaseSource reports per-database key counts to the collector. It is
// satisfied by *dbmanager.Manager without metrics importing dbmanager, which
// would otherwise create an import cycle with the server wiring.
type DatabaseSource interface {
	DatabaseNames() []string
	KeyCount(database string) (int, error)
}

// QueueSource reports queue depth and worker counts from the flusher pool
// and dispatcher.
type QueueSource interface {
	FlusherQueueDepth() int
	FlusherWorkerCount() int
	DispatcherQueueDepth() int
}

// TimerSource reports pending counts from the expire and future indexes.
type TimerSource interface {
	ExpirePending() int
	FuturePending() int
}

// Collector polls the database manager, flusher pool, and timer indexes on
// an interval and republishes their state as Prometheus gauges.
type Collector struct {
	databases DatabaseSource
	queues    QueueSource
	timers    TimerSource
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(databases DatabaseSource, queues QueueSource, timers TimerSource) *Collector {
	return &Collector{
		databases: databases,
		queues:    queues,
		timers:    timers,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectDatabaseMetrics()
	c.collectQueueMetrics()
	c.collectTimerMetrics()
}

func (c *Collector) collectDatabaseMetrics() {
	if c.databases == nil {
		return
	}
	names := c.databases.DatabaseNames()
	DatabasesTotal.Set(float64(len(names)))
	for _, name := range names {
		count, err := c.databases.KeyCount(name)
		if err != nil {
			continue
		}
		KeysTotal.WithLabelValues(name).Set(float64(count))
	}
}

func (c *Collector) collectQueueMetrics() {
	if c.queues == nil {
		return
	}
	FlusherQueueDepth.Set(float64(c.queues.FlusherQueueDepth()))
	FlusherWorkersTotal.Set(float64(c.queues.FlusherWorkerCount()))
	DispatcherQueueDepth.Set(float64(c.queues.DispatcherQueueDepth()))
}

func (c *Collector) collectTimerMetrics() {
	if c.timers == nil {
		return
	}
	ExpiresPendingTotal.Set(float64(c.timers.ExpirePending()))
	FuturesPendingTotal.Set(float64(c.timers.FuturePending()))
}
