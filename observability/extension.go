package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arareko/pysoa/ext"
	"github.com/arareko/pysoa/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.JobReceived     = (*MetricsExtension)(nil)
	_ ext.JobRejected     = (*MetricsExtension)(nil)
	_ ext.JobCompleted    = (*MetricsExtension)(nil)
	_ ext.ActionCompleted = (*MetricsExtension)(nil)
	_ ext.ActionFailed    = (*MetricsExtension)(nil)
	_ ext.HandlerFaulted  = (*MetricsExtension)(nil)
)

const namespace = "pysoa"

// MetricsExtension records server-wide lifecycle counters in Prometheus.
// Register it as a pysoa extension to track how many jobs arrive, how many
// are rejected during validation, and how actions fare per action name.
type MetricsExtension struct {
	JobsReceived     prometheus.Counter
	JobsRejected     prometheus.Counter
	JobsCompleted    prometheus.Counter
	JobDuration      prometheus.Histogram
	ActionsCompleted *prometheus.CounterVec
	ActionsFailed    *prometheus.CounterVec
	HandlerFaults    *prometheus.CounterVec
}

// NewMetricsExtension creates a MetricsExtension registered on
// prometheus.DefaultRegisterer.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsExtensionWithRegisterer creates a MetricsExtension whose
// collectors are registered on reg. Pass a fresh prometheus.NewRegistry()
// in tests.
func NewMetricsExtensionWithRegisterer(reg prometheus.Registerer) (*MetricsExtension, error) {
	m := &MetricsExtension{
		JobsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_received_total",
			Help:      "Job requests handed to the server.",
		}),
		JobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Job requests rejected with a job error.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Job requests that produced a response.",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent dispatching the actions of a job.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_completed_total",
			Help:      "Actions that returned a body without errors.",
		}, []string{"action"}),
		ActionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_failed_total",
			Help:      "Actions whose response carried errors.",
		}, []string{"action"}),
		HandlerFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_faults_total",
			Help:      "Handlers that crashed and aborted their job.",
		}, []string{"action"}),
	}

	for _, c := range []prometheus.Collector{
		m.JobsReceived, m.JobsRejected, m.JobsCompleted, m.JobDuration,
		m.ActionsCompleted, m.ActionsFailed, m.HandlerFaults,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobReceived implements ext.JobReceived.
func (m *MetricsExtension) OnJobReceived(_ context.Context, _ *job.Request) error {
	m.JobsReceived.Inc()
	return nil
}

// OnJobRejected implements ext.JobRejected.
func (m *MetricsExtension) OnJobRejected(_ context.Context, _ *job.Request, _ *job.JobError) error {
	m.JobsRejected.Inc()
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, _ *job.Request, _ *job.Response, elapsed time.Duration) error {
	m.JobsCompleted.Inc()
	m.JobDuration.Observe(elapsed.Seconds())
	return nil
}

// ── Action lifecycle hooks ──────────────────────────

// OnActionCompleted implements ext.ActionCompleted.
func (m *MetricsExtension) OnActionCompleted(_ context.Context, _ int, resp job.ActionResponse, _ time.Duration) error {
	m.ActionsCompleted.WithLabelValues(resp.Action).Inc()
	return nil
}

// OnActionFailed implements ext.ActionFailed.
func (m *MetricsExtension) OnActionFailed(_ context.Context, _ int, resp job.ActionResponse) error {
	m.ActionsFailed.WithLabelValues(resp.Action).Inc()
	return nil
}

// OnHandlerFaulted implements ext.HandlerFaulted.
func (m *MetricsExtension) OnHandlerFaulted(_ context.Context, _ int, fault *job.HandlerFault) error {
	m.HandlerFaults.WithLabelValues(fault.Action).Inc()
	return nil
}
