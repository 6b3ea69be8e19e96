package control_test

import (
	"math"
	"slices"
	"testing"

	"github.com/arareko/pysoa/control"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/serializer"
)

func validControl() map[string]any {
	return map[string]any{
		"switches":          []any{},
		"continue_on_error": false,
		"correlation_id":    "1",
	}
}

func fields(errs []job.Error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	raw := validControl()
	raw["switches"] = []any{float64(5), "beta", int64(5)}
	raw["continue_on_error"] = true

	header, errs := v.Validate(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !header.ContinueOnError {
		t.Error("expected ContinueOnError = true")
	}
	if header.CorrelationID != "1" {
		t.Errorf("CorrelationID = %q, want %q", header.CorrelationID, "1")
	}
	want := []string{"5", "beta"}
	if len(header.Switches) != len(want) {
		t.Fatalf("Switches = %v, want %v", header.Switches, want)
	}
	for i := range want {
		if header.Switches[i] != want[i] {
			t.Errorf("Switches[%d] = %q, want %q", i, header.Switches[i], want[i])
		}
	}
}

func TestValidate_MissingSwitches(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	raw := validControl()
	delete(raw, "switches")

	_, errs := v.Validate(raw)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != control.FieldSwitches {
		t.Errorf("Field = %q, want %q", errs[0].Field, control.FieldSwitches)
	}
	if errs[0].Code != job.CodeMissing {
		t.Errorf("Code = %q, want %q", errs[0].Code, job.CodeMissing)
	}
}

func TestValidate_SwitchesWrongShape(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	for _, bad := range []any{"5", map[string]any{}, []any{1.5}, []any{true}} {
		raw := validControl()
		raw["switches"] = bad
		_, errs := v.Validate(raw)
		if len(errs) != 1 || errs[0].Field != control.FieldSwitches {
			t.Errorf("switches=%v: errors = %v", bad, errs)
		}
	}
}

func TestValidate_HugeIntegerSwitches(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	raw, err := (&serializer.JSON{}).BlobToDict([]byte(
		`{"switches":[100000000000000000000, 200000000000000000000, 9223372036854775808], "correlation_id":"1"}`))
	if err != nil {
		t.Fatalf("BlobToDict: %v", err)
	}

	header, errs := v.Validate(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"100000000000000000000", "200000000000000000000", "9223372036854775808"}
	if !slices.Equal(header.Switches, want) {
		t.Errorf("Switches = %v, want %v", header.Switches, want)
	}
}

func TestValidate_FloatSwitchOutOfInt64Range(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	for _, f := range []float64{1e20, 2e20, math.MaxInt64, -1e19} {
		raw := validControl()
		raw["switches"] = []any{f}
		_, errs := v.Validate(raw)
		if len(errs) != 1 || errs[0].Field != control.FieldSwitches || errs[0].Code != job.CodeWrongType {
			t.Errorf("switches=[%g]: errors = %v", f, errs)
		}
	}
}

func TestValidate_AccumulatesAllFields(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	raw := map[string]any{
		"continue_on_error": "yes",
		"correlation_id":    7,
	}

	_, errs := v.Validate(raw)
	got := fields(errs)
	want := []string{control.FieldSwitches, control.FieldContinueOnError, control.FieldCorrelationID}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidate_NilControl(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	_, errs := v.Validate(nil)
	if len(errs) != 1 || errs[0].Field != control.FieldControl {
		t.Fatalf("errors = %v", errs)
	}
}

func TestValidate_ContinueOnErrorDefaults(t *testing.T) {
	v := control.NewValidator(control.DefaultPolicy())
	raw := validControl()
	delete(raw, "continue_on_error")

	header, errs := v.Validate(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if header.ContinueOnError {
		t.Error("expected ContinueOnError to default to false")
	}
}

func TestValidate_ContinueOnErrorRequired(t *testing.T) {
	p := control.DefaultPolicy()
	p.ContinueOnError = control.ContinueRequired
	v := control.NewValidator(p)
	raw := validControl()
	delete(raw, "continue_on_error")

	_, errs := v.Validate(raw)
	if len(errs) != 1 || errs[0].Field != control.FieldContinueOnError {
		t.Fatalf("errors = %v", errs)
	}
}

func TestValidate_CorrelationPolicies(t *testing.T) {
	raw := validControl()
	delete(raw, "correlation_id")

	header, errs := control.NewValidator(control.DefaultPolicy()).Validate(raw)
	if len(errs) != 0 || header.CorrelationID != "" {
		t.Fatalf("optional: header=%+v errors=%v", header, errs)
	}

	required := control.DefaultPolicy()
	required.CorrelationID = control.CorrelationRequired
	_, errs = control.NewValidator(required).Validate(raw)
	if len(errs) != 1 || errs[0].Field != control.FieldCorrelationID {
		t.Fatalf("required: errors = %v", errs)
	}

	generate := control.DefaultPolicy()
	generate.CorrelationID = control.CorrelationGenerate
	v := control.NewValidator(generate, control.WithIDGenerator(func() string { return "corr_fixed" }))
	header, errs = v.Validate(raw)
	if len(errs) != 0 {
		t.Fatalf("generate: unexpected errors: %v", errs)
	}
	if header.CorrelationID != "corr_fixed" {
		t.Errorf("CorrelationID = %q, want %q", header.CorrelationID, "corr_fixed")
	}
}

func TestValidate_GenerateKeepsSuppliedID(t *testing.T) {
	p := control.DefaultPolicy()
	p.CorrelationID = control.CorrelationGenerate
	header, errs := control.NewValidator(p).Validate(validControl())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if header.CorrelationID != "1" {
		t.Errorf("CorrelationID = %q, want %q", header.CorrelationID, "1")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := control.DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := control.Policy{CorrelationID: "sometimes", ContinueOnError: control.ContinueDefault}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown correlation policy")
	}
}
