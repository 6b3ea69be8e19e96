// Package ext defines the extension system for pysoa.
//
// Extensions are notified of request lifecycle events and can react to
// them, e.g. recording metrics or writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, req *job.Request, resp *job.Response, elapsed time.Duration) error {
//	    log.Printf("job with %d actions completed in %s", len(resp.Actions), elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobReceived]: request was handed to the server
//   - [JobRejected]: request failed validation
//   - [JobCompleted]: a response was assembled
//
// # Action Lifecycle Hooks
//
//   - [ActionCompleted]: action returned a body
//   - [ActionFailed]: action response carried errors
//   - [HandlerFaulted]: a handler crashed and the job was aborted
//
// # Other Hooks
//
//   - [Shutdown]: the host is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
