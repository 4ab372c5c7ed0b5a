package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "logwindow"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Window    = "window"
	Source    = "source"
	Sequencer = "sequencer"
	Follower  = "follower"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple viewer instances.
type Labels struct {
	JobID         string // Job whose output is being paged
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.JobID != "" {
		labels["job_id"] = l.JobID
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Window state
	head            prometheus.Gauge
	tail            prometheus.Gauge
	residentRecords prometheus.Gauge
	residentLines   prometheus.Gauge
	lag             prometheus.Gauge

	// Edge operations
	edgeOps        *prometheus.CounterVec
	recordsGrown   prometheus.Counter
	recordsEvicted prometheus.Counter
	errors         *prometheus.CounterVec

	// Source calls
	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	recordsFetched prometheus.Counter

	// Sequencer
	pending      prometheus.Gauge
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// Live log growth
	followerMessages *prometheus.CounterVec
	recordsAppended  prometheus.Counter
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., job_id), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	// Wrap the registerer with constant labels if any are provided
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

// newMetrics is the internal constructor that creates and registers all metrics.
func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	// Buckets cover local and remote fetch latencies: 1ms .. 10s
	latencyBuckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	m := &Metrics{
		head: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "head",
			Help:      "Lowest materialized counter (0 when the window is empty)",
		}),
		tail: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "tail",
			Help:      "Highest materialized counter (0 when the window is empty)",
		}),
		residentRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "resident_records",
			Help:      "Number of records currently materialized",
		}),
		residentLines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "resident_lines",
			Help:      "Number of buffer lines covered by the materialized records",
		}),
		lag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "lag",
			Help:      "Counters between the window tail and the end of the log",
		}),
		edgeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "edge_operations_total",
			Help:      "Edge operations by operation and status",
		}, []string{"op", "status"}),
		recordsGrown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "records_materialized_total",
			Help:      "Total records materialized into the sink",
		}),
		recordsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Window,
			Name:      "records_evicted_total",
			Help:      "Total records evicted from the sink",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "fetches_total",
			Help:      "Total source fetches by call and status",
		}, []string{"call", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"call"}),
		recordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "records_fetched_total",
			Help:      "Total records returned by the source",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Sequencer,
			Name:      "pending",
			Help:      "Steps queued or running in the sequencer",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Sequencer,
			Name:      "steps_total",
			Help:      "Total sequencer steps by step and status",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Sequencer,
			Name:      "step_duration_seconds",
			Help:      "Time to run a single sequencer step end-to-end",
			Buckets:   latencyBuckets,
		}, []string{"step"}),
		followerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Follower,
			Name:      "messages_total",
			Help:      "Live job output messages consumed by status",
		}, []string{"status"}),
		recordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Follower,
			Name:      "records_appended_total",
			Help:      "Total records appended to the log while following",
		}),
	}

	err := errors.Join(
		reg.Register(m.head),
		reg.Register(m.tail),
		reg.Register(m.residentRecords),
		reg.Register(m.residentLines),
		reg.Register(m.lag),
		reg.Register(m.edgeOps),
		reg.Register(m.recordsGrown),
		reg.Register(m.recordsEvicted),
		reg.Register(m.errors),
		reg.Register(m.fetches),
		reg.Register(m.fetchDuration),
		reg.Register(m.recordsFetched),
		reg.Register(m.pending),
		reg.Register(m.steps),
		reg.Register(m.stepDuration),
		reg.Register(m.followerMessages),
		reg.Register(m.recordsAppended),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants.
const (
	ErrTypeNotContiguous = "not_contiguous"
	ErrTypeSink          = "sink"
	ErrTypeSource        = "source"
)

// Edge operation label values.
const (
	OpGrowHigh   = "grow_high"
	OpGrowLow    = "grow_low"
	OpShrinkHigh = "shrink_high"
	OpShrinkLow  = "shrink_low"
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// UpdateWindowMetrics updates window state gauges.
func (m *Metrics) UpdateWindowMetrics(head, tail int64, records int, lines int64) {
	if m == nil {
		return
	}
	m.head.Set(float64(head))
	m.tail.Set(float64(tail))
	m.residentRecords.Set(float64(records))
	m.residentLines.Set(float64(lines))
}

// SetLag records how far the window tail trails the end of the log.
func (m *Metrics) SetLag(lag int64) {
	if m == nil {
		return
	}
	m.lag.Set(float64(lag))
}

// RecordEdgeOp records an edge operation outcome and the number of records it moved.
func (m *Metrics) RecordEdgeOp(op string, err error, records int) {
	if m == nil {
		return
	}
	m.edgeOps.WithLabelValues(op, status(err)).Inc()
	if err != nil {
		return
	}
	switch op {
	case OpGrowHigh, OpGrowLow:
		m.recordsGrown.Add(float64(records))
	case OpShrinkHigh, OpShrinkLow:
		m.recordsEvicted.Add(float64(records))
	}
}

// RecordFetch records a source call with its duration and result size.
func (m *Metrics) RecordFetch(call string, err error, durationSeconds float64, records int) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(call, status(err)).Inc()
	m.fetchDuration.WithLabelValues(call).Observe(durationSeconds)
	if err == nil {
		m.recordsFetched.Add(float64(records))
	}
}

// IncPending increments the sequencer pending gauge.
func (m *Metrics) IncPending() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

// DecPending decrements the sequencer pending gauge.
func (m *Metrics) DecPending() {
	if m == nil {
		return
	}
	m.pending.Dec()
}

// RecordStep records a completed sequencer step.
func (m *Metrics) RecordStep(step string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, status(err)).Inc()
	m.stepDuration.WithLabelValues(step).Observe(durationSeconds)
}

// RecordFollowerMessage records a consumed live output message.
func (m *Metrics) RecordFollowerMessage(err error) {
	if m == nil {
		return
	}
	m.followerMessages.WithLabelValues(status(err)).Inc()
}

// AddRecordsAppended records log growth observed while following.
func (m *Metrics) AddRecordsAppended(count int) {
	if m == nil {
		return
	}
	m.recordsAppended.Add(float64(count))
}
