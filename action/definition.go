package action

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/arareko/pysoa/job"
)

// Definition is a typed action. In is decoded from the request body and Out
// is encoded back into the response body, both through their json tags.
type Definition[In, Out any] struct {
	// Name is the action name clients use.
	Name string

	// Handler processes the decoded body.
	Handler func(ctx context.Context, in In) (Out, error)
}

// NewDefinition creates a typed action definition.
func NewDefinition[In, Out any](name string, handler func(ctx context.Context, in In) (Out, error)) *Definition[In, Out] {
	return &Definition[In, Out]{Name: name, Handler: handler}
}

// RegisterDefinition registers a typed definition. A body that does not
// decode into In is reported as an *job.ActionError on "body"; the typed
// handler is not called.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[In, Out any](r *Registry, def *Definition[In, Out]) {
	r.RegisterFunc(def.Name, func(ctx context.Context, body map[string]any) (map[string]any, error) {
		var in In
		if err := decode(body, &in); err != nil {
			return nil, Invalid("body", "invalid body: "+err.Error())
		}
		out, err := def.Handler(ctx, in)
		if err != nil {
			return nil, err
		}
		result := map[string]any{}
		if err := decode(out, &result); err != nil {
			return nil, fmt.Errorf("encode result for action %q: %w", def.Name, err)
		}
		return result, nil
	})
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Invalid returns an ActionError with one INVALID error on field.
func Invalid(field, message string) *job.ActionError {
	return job.NewActionError(job.NewError(job.CodeInvalid, message, field))
}
