// Package action holds the action registry a service supplies to pysoa.
//
// # Registry
//
// [Registry] maps action names to [Factory] values. A factory is called once
// per invocation and yields a [Handler]:
//
//	r := action.NewRegistry()
//	r.RegisterFunc("echo", func(ctx context.Context, body map[string]any) (map[string]any, error) {
//	    return body, nil
//	})
//
// Handlers report a declared failure by returning a *job.ActionError (see
// [Invalid]). Any other error, or a panic, is treated as a crash.
//
// # Typed Actions
//
// [Definition] decodes the body into a Go type and encodes the result back:
//
//	var Square = action.NewDefinition("square",
//	    func(ctx context.Context, in SquareIn) (SquareOut, error) {
//	        return SquareOut{Result: in.Value * in.Value}, nil
//	    },
//	)
//	action.RegisterDefinition(r, Square)
//
// The registry is read concurrently by every request in flight; register
// actions at startup.
package action
