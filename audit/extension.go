package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arareko/pysoa/ext"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/scope"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.JobReceived     = (*Extension)(nil)
	_ ext.JobRejected     = (*Extension)(nil)
	_ ext.JobCompleted    = (*Extension)(nil)
	_ ext.ActionCompleted = (*Extension)(nil)
	_ ext.ActionFailed    = (*Extension)(nil)
	_ ext.HandlerFaulted  = (*Extension)(nil)
)

// Recorder is the interface audit backends implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is one audit trail entry.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
	Time       time.Time      `json:"time"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// LogRecorder writes every event as one structured log line. Metadata is
// nested under a "metadata" group so it never shadows the fixed keys.
func LogRecorder(logger *slog.Logger) Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return RecorderFunc(func(ctx context.Context, evt *Event) error {
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		if len(evt.Metadata) > 0 {
			meta := make([]any, 0, len(evt.Metadata))
			for k, v := range evt.Metadata {
				meta = append(meta, slog.Any(k, v))
			}
			attrs = append(attrs, slog.Group("metadata", meta...))
		}
		level := slog.LevelInfo
		if evt.Severity != SeverityInfo {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension turns server lifecycle events into audit events.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobReceived implements ext.JobReceived.
func (e *Extension) OnJobReceived(ctx context.Context, req *job.Request) error {
	return e.record(ctx, ActionJobReceived, SeverityInfo, OutcomeSuccess,
		ResourceJob, correlationOf(req), CategoryJob, nil,
		"actions", len(req.Actions),
	)
}

// OnJobRejected implements ext.JobRejected.
func (e *Extension) OnJobRejected(ctx context.Context, req *job.Request, jobErr *job.JobError) error {
	fields := make([]string, len(jobErr.Errors))
	for i, je := range jobErr.Errors {
		fields[i] = je.Field
	}
	return e.record(ctx, ActionJobRejected, SeverityWarning, OutcomeFailure,
		ResourceJob, correlationOf(req), CategoryJob, jobErr,
		"fields", fields,
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, req *job.Request, resp *job.Response, elapsed time.Duration) error {
	outcome := OutcomeSuccess
	if resp.Failed() {
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionJobCompleted, SeverityInfo, outcome,
		ResourceJob, correlationOf(req), CategoryJob, nil,
		"requested", len(req.Actions),
		"attempted", len(resp.Actions),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Action lifecycle hooks ──────────────────────────

// OnActionCompleted implements ext.ActionCompleted.
func (e *Extension) OnActionCompleted(ctx context.Context, index int, resp job.ActionResponse, elapsed time.Duration) error {
	return e.record(ctx, ActionActionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceAction, resp.Action, CategoryAction, nil,
		"index", index,
		"correlation_id", scope.CorrelationID(ctx),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnActionFailed implements ext.ActionFailed.
func (e *Extension) OnActionFailed(ctx context.Context, index int, resp job.ActionResponse) error {
	codes := make([]string, len(resp.Errors))
	for i, ae := range resp.Errors {
		codes[i] = string(ae.Code)
	}
	return e.record(ctx, ActionActionFailed, SeverityWarning, OutcomeFailure,
		ResourceAction, resp.Action, CategoryAction, nil,
		"index", index,
		"correlation_id", scope.CorrelationID(ctx),
		"codes", codes,
	)
}

// OnHandlerFaulted implements ext.HandlerFaulted.
func (e *Extension) OnHandlerFaulted(ctx context.Context, index int, fault *job.HandlerFault) error {
	return e.record(ctx, ActionHandlerFaulted, SeverityCritical, OutcomeFailure,
		ResourceAction, fault.Action, CategoryAction, fault,
		"index", index,
		"correlation_id", scope.CorrelationID(ctx),
		"panic", fault.Panic != nil,
	)
}

// ── Internal helpers ────────────────────────────────

// correlationOf reads the raw correlation id; rejected jobs may not have a
// valid one.
func correlationOf(req *job.Request) string {
	if s, ok := req.Control["correlation_id"].(string); ok {
		return s
	}
	return ""
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata;
// empty string values are dropped.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		if s, isString := kvPairs[i+1].(string); isString && s == "" {
			continue
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
		Time:       time.Now().UTC(),
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
