package job

import "slices"

// State is a phase of job processing.
type State string

const (
	// StateValidating means the control header is being checked.
	StateValidating State = "validating"
	// StateDispatching means actions are being invoked in request order.
	StateDispatching State = "dispatching"
	// StateCompleted means a response was assembled.
	StateCompleted State = "completed"
	// StateRejected means the job failed validation and no action ran.
	StateRejected State = "rejected"
)

// Request is one client-issued job. Control is kept in its raw decoded form
// until the control validator turns it into a ControlHeader.
type Request struct {
	Control map[string]any  `json:"control" msgpack:"control"`
	Actions []ActionRequest `json:"actions" msgpack:"actions"`
}

// NewRequest builds a request from a typed header.
func NewRequest(control ControlHeader, actions ...ActionRequest) *Request {
	return &Request{Control: control.ToMap(), Actions: actions}
}

// ToMap returns the request as a plain mapping for serializers.
func (r *Request) ToMap() map[string]any {
	actions := make([]any, len(r.Actions))
	for i, a := range r.Actions {
		actions[i] = a.ToMap()
	}
	return map[string]any{
		"control": r.Control,
		"actions": actions,
	}
}

// ControlHeader is the validated, typed control section of a job.
type ControlHeader struct {
	// Switches are opaque feature-flag identifiers interpreted by handlers.
	Switches []string `json:"switches" msgpack:"switches"`
	// ContinueOnError keeps dispatching after an action reports errors.
	ContinueOnError bool `json:"continue_on_error" msgpack:"continue_on_error"`
	// CorrelationID is passed through unchanged for tracing.
	CorrelationID string `json:"correlation_id" msgpack:"correlation_id"`
}

// HasSwitch reports whether the switch is active for the job.
func (c ControlHeader) HasSwitch(s string) bool {
	return slices.Contains(c.Switches, s)
}

// ToMap returns the header in its wire form.
func (c ControlHeader) ToMap() map[string]any {
	switches := make([]any, len(c.Switches))
	for i, s := range c.Switches {
		switches[i] = s
	}
	m := map[string]any{
		"switches":          switches,
		"continue_on_error": c.ContinueOnError,
	}
	if c.CorrelationID != "" {
		m["correlation_id"] = c.CorrelationID
	}
	return m
}

// ActionRequest names one action and carries its input body. The body is
// opaque to everything but the handler.
type ActionRequest struct {
	Action string         `json:"action" msgpack:"action" mapstructure:"action"`
	Body   map[string]any `json:"body,omitempty" msgpack:"body,omitempty" mapstructure:"body"`
}

// ToMap returns the action request as a plain mapping.
func (a ActionRequest) ToMap() map[string]any {
	body := a.Body
	if body == nil {
		body = map[string]any{}
	}
	return map[string]any{"action": a.Action, "body": body}
}

// ActionResponse is the outcome of one attempted action. Body is empty when
// Errors is not.
type ActionResponse struct {
	Action string         `json:"action" msgpack:"action" mapstructure:"action"`
	Body   map[string]any `json:"body" msgpack:"body" mapstructure:"body"`
	Errors []Error        `json:"errors,omitempty" msgpack:"errors,omitempty" mapstructure:"errors"`
}

// Failed reports whether the action produced errors.
func (a ActionResponse) Failed() bool { return len(a.Errors) > 0 }

// ToMap returns the action response as a plain mapping.
func (a ActionResponse) ToMap() map[string]any {
	body := a.Body
	if body == nil {
		body = map[string]any{}
	}
	return map[string]any{
		"action": a.Action,
		"body":   body,
		"errors": errorsToMaps(a.Errors),
	}
}

// Response holds one ActionResponse per attempted action, in request order.
type Response struct {
	Actions []ActionResponse `json:"actions" msgpack:"actions" mapstructure:"actions"`
}

// Failed reports whether any attempted action produced errors.
func (r *Response) Failed() bool {
	for _, a := range r.Actions {
		if a.Failed() {
			return true
		}
	}
	return false
}

// ToMap returns the response as a plain mapping.
func (r *Response) ToMap() map[string]any {
	actions := make([]any, len(r.Actions))
	for i, a := range r.Actions {
		actions[i] = a.ToMap()
	}
	return map[string]any{"actions": actions}
}
