package audit

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobReceived     = "job.received"
	ActionJobRejected     = "job.rejected"
	ActionJobCompleted    = "job.completed"
	ActionActionCompleted = "action.completed"
	ActionActionFailed    = "action.failed"
	ActionHandlerFaulted  = "action.faulted"
)

// Audit event categories group related actions.
const (
	CategoryJob    = "pysoa.job"
	CategoryAction = "pysoa.action"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob    = "job"
	ResourceAction = "action"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobReceived,
		ActionJobRejected,
		ActionJobCompleted,
		ActionActionCompleted,
		ActionActionFailed,
		ActionHandlerFaulted,
	}
}
