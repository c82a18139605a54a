// Package metrics collects and exposes Prometheus metrics for the check-in engine.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what sessions and handlers report to.
type Recorder interface {
	RecordCheckIn(mystery string)
	RecordStreakReset()
	RecordStreakLapse()
	RecordPersistenceFailure(op string)
	RecordSnapshotRepair()
	RecordCorruptSnapshot()
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	checkIns            *prometheus.CounterVec
	streakResets        prometheus.Counter
	streakLapses        prometheus.Counter
	persistenceFailures *prometheus.CounterVec
	snapshotRepairs     prometheus.Counter
	corruptSnapshots    prometheus.Counter
	httpStatus          *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_checkins_total",
			Help: "Check-ins recorded, by mystery.",
		}, []string{"mystery"}),
		streakResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prayer_streak_resets_total",
			Help: "Submissions that reset a streak to 1.",
		}),
		streakLapses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prayer_streak_lapses_total",
			Help: "Streaks zeroed during rehydration.",
		}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_persistence_failures_total",
			Help: "Failed ledger saves and loads.",
		}, []string{"op"}),
		snapshotRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prayer_snapshot_repairs_total",
			Help: "Loaded aggregates rebuilt from the ledger.",
		}),
		corruptSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prayer_corrupt_snapshots_total",
			Help: "Stored ledgers skipped as unreadable.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		c.checkIns,
		c.streakResets,
		c.streakLapses,
		c.persistenceFailures,
		c.snapshotRepairs,
		c.corruptSnapshots,
		c.httpStatus,
	)
	return c
}

func (c *Collector) RecordCheckIn(mystery string) { c.checkIns.WithLabelValues(mystery).Inc() }
func (c *Collector) RecordStreakReset()           { c.streakResets.Inc() }
func (c *Collector) RecordStreakLapse()           { c.streakLapses.Inc() }
func (c *Collector) RecordSnapshotRepair()        { c.snapshotRepairs.Inc() }
func (c *Collector) RecordCorruptSnapshot()       { c.corruptSnapshots.Inc() }

func (c *Collector) RecordPersistenceFailure(op string) {
	c.persistenceFailures.WithLabelValues(op).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCheckIn(string)            {}
func (Nop) RecordStreakReset()              {}
func (Nop) RecordStreakLapse()              {}
func (Nop) RecordPersistenceFailure(string) {}
func (Nop) RecordSnapshotRepair()           {}
func (Nop) RecordCorruptSnapshot()          {}
func (Nop) RecordHTTPStatus(int)            {}
