package job_test

import (
	"errors"
	"testing"

	"github.com/arareko/pysoa/job"
)

func validRaw() map[string]any {
	return map[string]any{
		"control": map[string]any{
			"switches":          []any{},
			"continue_on_error": false,
			"correlation_id":    "1",
		},
		"actions": []any{
			map[string]any{
				"action": "test_action",
				"body":   map[string]any{"field": "value"},
			},
		},
	}
}

func jobErrorFields(t *testing.T, err error) []string {
	t.Helper()
	var je *job.JobError
	if !errors.As(err, &je) {
		t.Fatalf("expected *job.JobError, got %T (%v)", err, err)
	}
	fields := make([]string, len(je.Errors))
	for i, e := range je.Errors {
		fields[i] = e.Field
	}
	return fields
}

func TestParseRequest_Valid(t *testing.T) {
	req, err := job.ParseRequest(validRaw())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(req.Actions))
	}
	if got := req.Actions[0].Action; got != "test_action" {
		t.Errorf("Action = %q, want %q", got, "test_action")
	}
	if got := req.Actions[0].Body["field"]; got != "value" {
		t.Errorf("Body[field] = %v, want %q", got, "value")
	}
	if _, ok := req.Control["switches"]; !ok {
		t.Error("expected raw control to be kept")
	}
}

func TestParseRequest_MissingBodyBecomesEmpty(t *testing.T) {
	raw := validRaw()
	raw["actions"] = []any{map[string]any{"action": "noop"}}

	req, err := job.ParseRequest(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Actions[0].Body == nil {
		t.Fatal("expected empty body, got nil")
	}
}

func TestParseRequest_MissingControlAndActions(t *testing.T) {
	_, err := job.ParseRequest(map[string]any{})
	fields := jobErrorFields(t, err)
	want := []string{"control", "actions"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestParseRequest_EmptyActions(t *testing.T) {
	raw := validRaw()
	raw["actions"] = []any{}

	_, err := job.ParseRequest(raw)
	fields := jobErrorFields(t, err)
	if len(fields) != 1 || fields[0] != "actions" {
		t.Fatalf("fields = %v, want [actions]", fields)
	}
}

func TestParseRequest_AccumulatesActionErrors(t *testing.T) {
	raw := validRaw()
	raw["actions"] = []any{
		"not-a-mapping",
		map[string]any{"action": 42},
		map[string]any{"action": "ok", "body": []any{1}},
	}

	_, err := job.ParseRequest(raw)
	fields := jobErrorFields(t, err)
	want := []string{"actions.0", "actions.1.action", "actions.2.body"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestResponseFromMap(t *testing.T) {
	resp := &job.Response{Actions: []job.ActionResponse{
		{Action: "a", Body: map[string]any{"x": "y"}},
		{Action: "b", Body: map[string]any{}, Errors: []job.Error{
			job.NewError(job.CodeInvalid, "bad", "body.field"),
		}},
	}}

	got, err := job.ResponseFromMap(resp.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(got.Actions))
	}
	if got.Actions[0].Failed() {
		t.Error("first action should not have errors")
	}
	if got.Actions[0].Body["x"] != "y" {
		t.Errorf("Body[x] = %v, want %q", got.Actions[0].Body["x"], "y")
	}
	if len(got.Actions[1].Errors) != 1 || got.Actions[1].Errors[0].Field != "body.field" {
		t.Errorf("unexpected errors: %+v", got.Actions[1].Errors)
	}
}

func TestJobErrorFromMap(t *testing.T) {
	je := job.NewJobError(job.NewError(job.CodeMissing, "switches is required", "control.switches"))

	got, err := job.JobErrorFromMap(je.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got.Errors))
	}
	if got.Errors[0] != je.Errors[0] {
		t.Errorf("error = %+v, want %+v", got.Errors[0], je.Errors[0])
	}
}
