package job

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// ParseRequest turns a decoded dictionary into a Request. Structural
// problems are collected into a single *JobError. The control section is
// only checked for being a mapping; its fields are the control validator's
// concern.
func ParseRequest(raw map[string]any) (*Request, error) {
	var errs []Error
	req := &Request{}

	switch c := raw["control"].(type) {
	case map[string]any:
		req.Control = c
	case nil:
		errs = append(errs, NewError(CodeMissing, "control is required", "control"))
	default:
		errs = append(errs, NewError(CodeWrongType, "control must be a mapping", "control"))
	}

	rawActions, present := raw["actions"]
	list, isList := rawActions.([]any)
	switch {
	case !present || rawActions == nil:
		errs = append(errs, NewError(CodeMissing, "actions is required", "actions"))
	case !isList:
		errs = append(errs, NewError(CodeWrongType, "actions must be a list", "actions"))
	case len(list) == 0:
		errs = append(errs, NewError(CodeInvalid, "at least one action is required", "actions"))
	default:
		req.Actions = make([]ActionRequest, 0, len(list))
		for i, item := range list {
			a, aErrs := parseAction(i, item)
			errs = append(errs, aErrs...)
			req.Actions = append(req.Actions, a)
		}
	}

	if len(errs) > 0 {
		return nil, NewJobError(errs...)
	}
	return req, nil
}

func parseAction(i int, item any) (ActionRequest, []Error) {
	path := "actions." + strconv.Itoa(i)
	m, ok := item.(map[string]any)
	if !ok {
		return ActionRequest{}, []Error{NewError(CodeWrongType, "action request must be a mapping", path)}
	}

	var errs []Error
	a := ActionRequest{Body: map[string]any{}}
	switch name := m["action"].(type) {
	case string:
		a.Action = name
	case nil:
		errs = append(errs, NewError(CodeMissing, "action name is required", path+".action"))
	default:
		errs = append(errs, NewError(CodeWrongType, "action name must be a string", path+".action"))
	}

	switch body := m["body"].(type) {
	case map[string]any:
		a.Body = body
	case nil:
	default:
		errs = append(errs, NewError(CodeWrongType, "body must be a mapping", path+".body"))
	}
	return a, errs
}

// ResponseFromMap decodes a response dictionary produced by Response.ToMap.
func ResponseFromMap(raw map[string]any) (*Response, error) {
	var resp Response
	if err := mapstructure.Decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	for i := range resp.Actions {
		if resp.Actions[i].Body == nil {
			resp.Actions[i].Body = map[string]any{}
		}
		if len(resp.Actions[i].Errors) == 0 {
			resp.Actions[i].Errors = nil
		}
	}
	return &resp, nil
}

// JobErrorFromMap decodes a dictionary produced by JobError.ToMap.
func JobErrorFromMap(raw map[string]any) (*JobError, error) {
	var je JobError
	if err := mapstructure.Decode(raw, &je); err != nil {
		return nil, fmt.Errorf("decode job error: %w", err)
	}
	return NewJobError(je.Errors...), nil
}
