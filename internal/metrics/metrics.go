package metrics

import (
	"time"

	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects publication counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	postsScheduled  prometheus.Counter
	postsPublished  *prometheus.CounterVec
	accountOutcomes *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	scanPosts       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		postsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postcadence_posts_scheduled_total",
			Help: "Posts assigned to a slot",
		}),
		postsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postcadence_posts_published_total",
			Help: "Publication attempts by terminal status",
		}, []string{"status"}),
		accountOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postcadence_account_outcomes_total",
			Help: "Per-account publish outcomes",
		}, []string{"channel", "status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postcadence_due_scan_duration_seconds",
			Help:    "Duration of due-post scans",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		scanPosts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postcadence_due_scan_posts_total",
			Help: "Posts picked up by due-post scans",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.postsScheduled, m.postsPublished, m.accountOutcomes, m.scanDuration, m.scanPosts)
	}
	return m
}

func (m *Metrics) PostScheduled() {
	if m == nil {
		return
	}
	m.postsScheduled.Inc()
}

func (m *Metrics) PostPublished(status models.PostStatus, channels []models.ChannelResult) {
	if m == nil {
		return
	}
	m.postsPublished.WithLabelValues(string(status)).Inc()
	for _, ch := range channels {
		for _, o := range ch.Outcomes {
			m.accountOutcomes.WithLabelValues(ch.Channel, string(o.Status)).Inc()
		}
	}
}

func (m *Metrics) ScanCompleted(started time.Time, posts int) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(time.Since(started).Seconds())
	m.scanPosts.Add(float64(posts))
}
