// Package job defines the job request and response model and the error
// vocabulary shared by every layer of pysoa.
//
// # Requests and Responses
//
// A [Request] carries a raw control section and an ordered list of
// [ActionRequest] values. Processing produces a [Response] with one
// [ActionResponse] per attempted action, in request order:
//
//	validating → dispatching → completed
//	validating → rejected
//
// [ParseRequest] builds a Request from a decoded dictionary, and the ToMap
// methods produce dictionaries for a serializer.
//
// # Errors
//
// Every failure is described by an [Error] (code, message, dotted field
// path). Three fault types exist:
//
//   - [JobError]: the request is structurally invalid; the whole job is
//     rejected and no response is produced.
//   - [ActionError]: a handler declared its own failure; it becomes the
//     errors of that one action's response.
//   - [HandlerFault]: a handler crashed; it propagates to the caller as a
//     server-level fault.
//
// [Kind] maps any error to a stable label for logs and metrics.
package job
