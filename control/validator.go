// Package control validates the control section of a job request and turns
// it into a typed job.ControlHeader.
//
// Validation never stops at the first bad field: every problem found is
// returned, so the orchestrator can reject the job with one complete
// job.JobError.
package control

import (
	"math"
	"strconv"

	"github.com/arareko/pysoa/id"
	"github.com/arareko/pysoa/job"
)

// Field paths reported in validation errors.
const (
	FieldControl         = "control"
	FieldSwitches        = "control.switches"
	FieldContinueOnError = "control.continue_on_error"
	FieldCorrelationID   = "control.correlation_id"
)

// Validator checks raw control sections against a Policy. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	policy   Policy
	generate func() string
}

// Option configures a Validator.
type Option func(*Validator)

// WithIDGenerator overrides the correlation id generator used by
// CorrelationGenerate.
func WithIDGenerator(fn func() string) Option {
	return func(v *Validator) { v.generate = fn }
}

// NewValidator creates a Validator for the given policy.
func NewValidator(policy Policy, opts ...Option) *Validator {
	v := &Validator{
		policy:   policy,
		generate: func() string { return id.NewCorrelationID().String() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the validator's policy.
func (v *Validator) Policy() Policy { return v.policy }

// Validate checks raw and returns the typed header. A non-empty error slice
// means the header must be rejected; the returned header is then zero.
func (v *Validator) Validate(raw map[string]any) (job.ControlHeader, []job.Error) {
	if raw == nil {
		return job.ControlHeader{}, []job.Error{
			job.NewError(job.CodeMissing, "control is required", FieldControl),
		}
	}

	var (
		header job.ControlHeader
		errs   []job.Error
	)

	switches, err := parseSwitches(raw)
	if err != nil {
		errs = append(errs, *err)
	}
	header.Switches = switches

	continueOnError, err := v.parseContinueOnError(raw)
	if err != nil {
		errs = append(errs, *err)
	}
	header.ContinueOnError = continueOnError

	correlationID, err := v.parseCorrelationID(raw)
	if err != nil {
		errs = append(errs, *err)
	}
	header.CorrelationID = correlationID

	if len(errs) > 0 {
		return job.ControlHeader{}, errs
	}
	return header, nil
}

func parseSwitches(raw map[string]any) ([]string, *job.Error) {
	value, ok := raw["switches"]
	if !ok || value == nil {
		e := job.NewError(job.CodeMissing, "switches is required", FieldSwitches)
		return nil, &e
	}
	list, ok := value.([]any)
	if !ok {
		if strs, isStrings := value.([]string); isStrings {
			return dedupe(strs), nil
		}
		e := job.NewError(job.CodeWrongType, "switches must be a list", FieldSwitches)
		return nil, &e
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		s, valid := switchString(item)
		if !valid {
			e := job.NewError(job.CodeWrongType, "switches must be integers or strings", FieldSwitches)
			return nil, &e
		}
		out = append(out, s)
	}
	return dedupe(out), nil
}

// switchString renders an opaque switch identifier. Integral floats are
// accepted because generic decoders produce them for JSON numbers.
func switchString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case int:
		return strconv.FormatInt(int64(s), 10), true
	case int8:
		return strconv.FormatInt(int64(s), 10), true
	case int16:
		return strconv.FormatInt(int64(s), 10), true
	case int32:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint:
		return strconv.FormatUint(uint64(s), 10), true
	case uint8:
		return strconv.FormatUint(uint64(s), 10), true
	case uint16:
		return strconv.FormatUint(uint64(s), 10), true
	case uint32:
		return strconv.FormatUint(uint64(s), 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float32:
		return integralFloat(float64(s))
	case float64:
		return integralFloat(s)
	default:
		return "", false
	}
}

// integralFloat rejects floats outside the int64 range, so distinct
// large switches never collapse into one.
func integralFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (v *Validator) parseContinueOnError(raw map[string]any) (bool, *job.Error) {
	value, ok := raw["continue_on_error"]
	if !ok || value == nil {
		if v.policy.ContinueOnError == ContinueRequired {
			e := job.NewError(job.CodeMissing, "continue_on_error is required", FieldContinueOnError)
			return false, &e
		}
		return false, nil
	}
	b, ok := value.(bool)
	if !ok {
		e := job.NewError(job.CodeWrongType, "continue_on_error must be a boolean", FieldContinueOnError)
		return false, &e
	}
	return b, nil
}

func (v *Validator) parseCorrelationID(raw map[string]any) (string, *job.Error) {
	value, ok := raw["correlation_id"]
	if ok && value != nil {
		s, isString := value.(string)
		if !isString {
			e := job.NewError(job.CodeWrongType, "correlation_id must be a string", FieldCorrelationID)
			return "", &e
		}
		if s != "" {
			return s, nil
		}
	}

	switch v.policy.CorrelationID {
	case CorrelationRequired:
		e := job.NewError(job.CodeMissing, "correlation_id is required", FieldCorrelationID)
		return "", &e
	case CorrelationGenerate:
		return v.generate(), nil
	default:
		return "", nil
	}
}
