// Package transport hosts a job Processor on the network.
//
// Every message is a Frame encoded as a dictionary by a serializer:
//
//	{"id": "frm_...", "type": "request", "job": {"control": {...}, "actions": [...]}, "ts": "..."}
//
// A request frame is answered by exactly one frame carrying the request's
// id in correl_id: "response" with the job response, "job_error" with the
// rejection reasons, or "error" with a transport-level code (400 for
// undecodable input, 413 for oversized messages, 429 when the peer is rate
// limited, 500 when a handler faulted, 503 after shutdown). Handler faults
// are logged; their cause never reaches the peer. "ping" is answered with
// "pong".
//
// Two endpoints are served under the base path:
//
//	GET  {path}       WebSocket; ?format=json (text messages) or ?format=msgpack (binary)
//	POST {path}/rpc   one frame per HTTP request; codec chosen by Content-Type
package transport
