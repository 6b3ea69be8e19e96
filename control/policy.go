package control

import "fmt"

// CorrelationPolicy decides how an absent correlation_id is handled.
type CorrelationPolicy string

const (
	// CorrelationOptional leaves an absent correlation id empty.
	CorrelationOptional CorrelationPolicy = "optional"
	// CorrelationRequired rejects a job without a correlation id.
	CorrelationRequired CorrelationPolicy = "required"
	// CorrelationGenerate assigns a fresh id when none is supplied.
	CorrelationGenerate CorrelationPolicy = "generate"
)

// ContinuePolicy decides how an absent continue_on_error is handled.
type ContinuePolicy string

const (
	// ContinueDefault treats an absent flag as false.
	ContinueDefault ContinuePolicy = "default"
	// ContinueRequired rejects a job without the flag.
	ContinueRequired ContinuePolicy = "required"
)

// Policy holds the validator's configuration points.
type Policy struct {
	CorrelationID   CorrelationPolicy
	ContinueOnError ContinuePolicy
}

// DefaultPolicy returns the lenient policy: correlation id optional,
// continue_on_error defaulting to false.
func DefaultPolicy() Policy {
	return Policy{
		CorrelationID:   CorrelationOptional,
		ContinueOnError: ContinueDefault,
	}
}

// Validate checks that the policy names known modes.
func (p Policy) Validate() error {
	switch p.CorrelationID {
	case CorrelationOptional, CorrelationRequired, CorrelationGenerate:
	default:
		return fmt.Errorf("control: unknown correlation id policy %q", p.CorrelationID)
	}
	switch p.ContinueOnError {
	case ContinueDefault, ContinueRequired:
	default:
		return fmt.Errorf("control: unknown continue_on_error policy %q", p.ContinueOnError)
	}
	return nil
}
