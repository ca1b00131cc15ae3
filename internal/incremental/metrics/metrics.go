package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for incremental materialization.
type Metrics struct {
	Runs               *prometheus.CounterVec
	Partitions         *prometheus.CounterVec
	RecordsWritten     prometheus.Counter
	ClassifiedRecords  *prometheus.CounterVec
	AppendRetries      prometheus.Counter
	PublishFailures    prometheus.Counter
	PartitionDuration  prometheus.Histogram
	Watermark          prometheus.Gauge
	RunInProgressTotal prometheus.Counter
}

// New registers all incremental metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmdamart_incremental_runs_total",
			Help: "Incremental runs by outcome",
		}, []string{"outcome"}), // outcome: "success", "noop", "failed"

		Partitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmdamart_incremental_partitions_total",
			Help: "Partitions processed by mode and outcome",
		}, []string{"mode", "outcome"}),

		RecordsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "hmdamart_incremental_records_written_total",
			Help: "Derived records committed to the derived store",
		}),

		ClassifiedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmdamart_classified_records_total",
			Help: "Committed derived records by demographic group",
		}, []string{"group"}),

		AppendRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "hmdamart_incremental_append_retries_total",
			Help: "Partition append attempts retried after a transient failure",
		}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "hmdamart_incremental_publish_failures_total",
			Help: "Partition events that could not be published",
		}),

		PartitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hmdamart_incremental_partition_duration_seconds",
			Help:    "Duration of materializing one reporting year",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		Watermark: f.NewGauge(prometheus.GaugeOpts{
			Name: "hmdamart_incremental_watermark_year",
			Help: "Highest reporting year present in the derived store at run start",
		}),

		RunInProgressTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "hmdamart_incremental_rejected_runs_total",
			Help: "Runs rejected because another run held the lock",
		}),
	}
}

func (m *Metrics) IncrementRun(outcome string) {
	if m != nil {
		m.Runs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementPartition(mode, outcome string) {
	if m != nil {
		m.Partitions.WithLabelValues(mode, outcome).Inc()
	}
}

func (m *Metrics) AddRecords(n int) {
	if m != nil {
		m.RecordsWritten.Add(float64(n))
	}
}

// AddGroups records committed rows per demographic group.
func (m *Metrics) AddGroups(groups map[string]int) {
	if m == nil {
		return
	}
	for group, n := range groups {
		if n > 0 {
			m.ClassifiedRecords.WithLabelValues(group).Add(float64(n))
		}
	}
}

func (m *Metrics) IncrementRetries() {
	if m != nil {
		m.AppendRetries.Inc()
	}
}

func (m *Metrics) IncrementPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) ObservePartition(d time.Duration) {
	if m != nil {
		m.PartitionDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetWatermark(year int) {
	if m != nil {
		m.Watermark.Set(float64(year))
	}
}

func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.RunInProgressTotal.Inc()
	}
}
