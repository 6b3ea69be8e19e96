// Package worker provides the action execution engine: an Executor that
// resolves an action by name, invokes its handler through middleware, and
// folds the outcome into an action response.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arareko/pysoa/action"
	"github.com/arareko/pysoa/ext"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/middleware"
)

// Executor runs a single action through middleware and the registered
// handler, then converts the result into a job.ActionResponse and emits
// lifecycle events.
//
// An Executor holds no per-request state and may be shared by concurrent
// requests.
type Executor struct {
	registry   *action.Registry
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *action.Registry,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	return &Executor{
		registry:   registry,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs one action.
//
// An unknown action name and a handler returning *job.ActionError both
// yield a response with errors and an empty body; a successful handler
// yields its body with no errors. Any other handler error, including a
// recovered panic, is returned as a *job.HandlerFault and no response is
// produced.
func (e *Executor) Execute(ctx context.Context, c *middleware.Call) (job.ActionResponse, error) {
	name := c.Action.Action

	factory, ok := e.registry.Get(name)
	if !ok {
		resp := job.ActionResponse{
			Action: name,
			Body:   map[string]any{},
			Errors: []job.Error{
				job.NewError(job.CodeActionNotFound, fmt.Sprintf("the action %q was not found on this server", name), "action"),
			},
		}
		e.logger.Warn("action not found",
			slog.String("action", name),
			slog.Int("index", c.Index),
		)
		e.extensions.EmitActionFailed(ctx, c.Index, resp)
		return resp, nil
	}

	start := time.Now()

	// The terminal handler builds a fresh handler for every invocation.
	terminal := func(ctx context.Context) (map[string]any, error) {
		return factory().Run(ctx, c.Action.Body)
	}

	body, err := e.mw(ctx, c, terminal)
	elapsed := time.Since(start)

	if err == nil {
		if body == nil {
			body = map[string]any{}
		}
		resp := job.ActionResponse{Action: name, Body: body}
		e.extensions.EmitActionCompleted(ctx, c.Index, resp, elapsed)
		return resp, nil
	}

	var actionErr *job.ActionError
	if errors.As(err, &actionErr) {
		resp := job.ActionResponse{
			Action: name,
			Body:   map[string]any{},
			Errors: actionErr.Normalized(),
		}
		e.extensions.EmitActionFailed(ctx, c.Index, resp)
		return resp, nil
	}

	return job.ActionResponse{}, e.handleFault(ctx, c, err)
}

// handleFault wraps a crash as a *job.HandlerFault and emits the event.
func (e *Executor) handleFault(ctx context.Context, c *middleware.Call, err error) *job.HandlerFault {
	var fault *job.HandlerFault
	if !errors.As(err, &fault) {
		fault = job.NewHandlerFault(c.Action.Action, err)
	}

	e.logger.Error("action handler fault",
		slog.String("action", c.Action.Action),
		slog.Int("index", c.Index),
		slog.String("correlation_id", c.Control.CorrelationID),
		slog.String("error", err.Error()),
	)

	e.extensions.EmitHandlerFaulted(ctx, c.Index, fault)
	return fault
}
