package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/action"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/serializer"
	"github.com/arareko/pysoa/server"
	"github.com/arareko/pysoa/transport"
)

// ── Test Helpers ──────────────────────────────────────

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type processorFunc func(ctx context.Context, req *job.Request) (*job.Response, error)

func (f processorFunc) ProcessRequest(ctx context.Context, req *job.Request) (*job.Response, error) {
	return f(ctx, req)
}

func newCore(t *testing.T) *server.Server {
	t.Helper()
	r := action.NewRegistry()
	r.RegisterFunc("echo", func(_ context.Context, body map[string]any) (map[string]any, error) {
		return body, nil
	})
	r.RegisterFunc("reject", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, action.Invalid("body.n", "not accepted")
	})
	s, err := server.New(r, server.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return s
}

func newHTTPServer(t *testing.T, core transport.Processor, opts ...transport.Option) (*transport.Server, *httptest.Server) {
	t.Helper()
	opts = append([]transport.Option{transport.WithLogger(testLogger())}, opts...)
	srv := transport.NewServer(core, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func echoRequest() *job.Request {
	return job.NewRequest(job.ControlHeader{CorrelationID: "corr_t"},
		job.ActionRequest{Action: "echo", Body: map[string]any{"n": int64(7)}},
	)
}

func postFrame(t *testing.T, url string, codec serializer.Serializer, f *transport.Frame) (int, *transport.Frame) {
	t.Helper()
	data, err := codec.DictToBlob(f.ToMap())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return postRaw(t, url, codec.MIMEType(), codec, data)
}

func postRaw(t *testing.T, url, contentType string, codec serializer.Serializer, data []byte) (int, *transport.Frame) {
	t.Helper()
	resp, err := http.Post(url+"/soa/rpc", contentType, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	m, err := codec.BlobToDict(body)
	if err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	reply, err := transport.FrameFromMap(m)
	if err != nil {
		t.Fatalf("FrameFromMap: %v", err)
	}
	return resp.StatusCode, reply
}

// ── HTTP RPC ──────────────────────────────────────────

func TestHTTPRPC_Response(t *testing.T) {
	for _, name := range []string{serializer.NameJSON, serializer.NameMsgpack} {
		t.Run(name, func(t *testing.T) {
			_, ts := newHTTPServer(t, newCore(t))
			codec := serializer.Get(name)

			in := transport.NewRequestFrame(echoRequest())
			status, reply := postFrame(t, ts.URL, codec, in)
			if status != http.StatusOK {
				t.Fatalf("status = %d, want 200", status)
			}
			if reply.Type != transport.FrameResponse || reply.CorrelID != in.ID {
				t.Fatalf("reply = %+v", reply)
			}
			resp, err := job.ResponseFromMap(reply.Response)
			if err != nil {
				t.Fatalf("ResponseFromMap: %v", err)
			}
			if len(resp.Actions) != 1 || resp.Actions[0].Body["n"] != int64(7) {
				t.Fatalf("actions = %+v", resp.Actions)
			}
		})
	}
}

func TestHTTPRPC_ActionErrorsStayInResponse(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))
	req := job.NewRequest(job.ControlHeader{},
		job.ActionRequest{Action: "reject"},
		job.ActionRequest{Action: "echo"},
	)

	_, reply := postFrame(t, ts.URL, serializer.Get("json"), transport.NewRequestFrame(req))
	if reply.Type != transport.FrameResponse {
		t.Fatalf("Type = %q, want response", reply.Type)
	}
	resp, err := job.ResponseFromMap(reply.Response)
	if err != nil {
		t.Fatalf("ResponseFromMap: %v", err)
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Errors[0].Field != "body.n" {
		t.Fatalf("actions = %+v, want one failed action", resp.Actions)
	}
}

func TestHTTPRPC_JobError(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))
	f := transport.NewRequestFrame(echoRequest())
	f.Job["control"] = map[string]any{"switches": "all of them"}

	status, reply := postFrame(t, ts.URL, serializer.Get("json"), f)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if reply.Type != transport.FrameJobError || len(reply.Errors) == 0 {
		t.Fatalf("reply = %+v, want job_error with errors", reply)
	}
	if !strings.HasPrefix(reply.Errors[0].Field, "control") {
		t.Errorf("Field = %q, want control path", reply.Errors[0].Field)
	}
}

func TestHTTPRPC_StructuralJobError(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))
	f := transport.NewRequestFrame(echoRequest())
	f.Job["actions"] = []any{}

	_, reply := postFrame(t, ts.URL, serializer.Get("json"), f)
	if reply.Type != transport.FrameJobError || reply.Errors[0].Field != "actions" {
		t.Fatalf("reply = %+v, want job_error on actions", reply)
	}
}

func TestHTTPRPC_HandlerFaultHidesCause(t *testing.T) {
	core := processorFunc(func(_ context.Context, _ *job.Request) (*job.Response, error) {
		return nil, job.NewHandlerFault("echo", errors.New("db password rejected"))
	})
	_, ts := newHTTPServer(t, core)

	status, reply := postFrame(t, ts.URL, serializer.Get("json"), transport.NewRequestFrame(echoRequest()))
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if reply.Error == nil || reply.Error.Message != "internal server error" {
		t.Fatalf("Error = %+v", reply.Error)
	}
}

func TestHTTPRPC_ServerClosed(t *testing.T) {
	core := newCore(t)
	if err := core.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	_, ts := newHTTPServer(t, core)

	status, reply := postFrame(t, ts.URL, serializer.Get("json"), transport.NewRequestFrame(echoRequest()))
	if status != http.StatusServiceUnavailable || reply.Error.Code != transport.ErrCodeUnavailable {
		t.Fatalf("status = %d, reply = %+v", status, reply)
	}
}

func TestHTTPRPC_BadInput(t *testing.T) {
	codec := serializer.Get("json")
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"garbage", serializer.MIMEJSON, "{not json", http.StatusBadRequest},
		{"no type", serializer.MIMEJSON, `{"id":"frm_1"}`, http.StatusBadRequest},
		{"unsupported content type", "text/xml", "<frame/>", http.StatusUnsupportedMediaType},
		{"unknown frame type", serializer.MIMEJSON, `{"id":"frm_1","type":"subscribe"}`, http.StatusBadRequest},
		{"request without job", serializer.MIMEJSON, `{"id":"frm_1","type":"request"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newHTTPServer(t, newCore(t))
			status, reply := postRaw(t, ts.URL, tt.contentType, codec, []byte(tt.body))
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if reply.Type != transport.FrameErr || reply.Error.Code != tt.wantStatus {
				t.Fatalf("reply = %+v", reply)
			}
		})
	}
}

func TestHTTPRPC_MessageTooLarge(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t), transport.WithMaxMessageBytes(64))
	f := transport.NewRequestFrame(echoRequest())
	f.Job["actions"].([]any)[0].(map[string]any)["body"] = map[string]any{"pad": strings.Repeat("x", 256)}

	status, reply := postFrame(t, ts.URL, serializer.Get("json"), f)
	if status != http.StatusRequestEntityTooLarge || reply.Error.Code != transport.ErrCodeTooLarge {
		t.Fatalf("status = %d, reply = %+v", status, reply)
	}
}

func TestHTTPRPC_RateLimited(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t), transport.WithRateLimit(0.001, 1))
	codec := serializer.Get("json")

	if status, _ := postFrame(t, ts.URL, codec, transport.NewRequestFrame(echoRequest())); status != http.StatusOK {
		t.Fatalf("first status = %d, want 200", status)
	}
	status, reply := postFrame(t, ts.URL, codec, transport.NewRequestFrame(echoRequest()))
	if status != http.StatusTooManyRequests || reply.Error.Code != transport.ErrCodeRateLimited {
		t.Fatalf("status = %d, reply = %+v", status, reply)
	}
}

func TestHTTPRPC_Ping(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))
	ping := transport.NewPingFrame()

	_, reply := postFrame(t, ts.URL, serializer.Get("json"), ping)
	if reply.Type != transport.FramePong || reply.CorrelID != ping.ID {
		t.Fatalf("reply = %+v, want pong for %s", reply, ping.ID)
	}
}

func TestHandler_ExtraRoute(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t), transport.WithRoute("GET /healthz",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })))

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

// ── WebSocket ─────────────────────────────────────────

func dialWS(t *testing.T, ts *httptest.Server, format string) net.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/soa"
	if format != "" {
		url += "?format=" + format
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("ws.Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exchange(t *testing.T, conn net.Conn, codec serializer.Serializer, op ws.OpCode, f *transport.Frame) (*transport.Frame, ws.OpCode) {
	t.Helper()
	data, err := codec.DictToBlob(f.ToMap())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := wsutil.WriteClientMessage(conn, op, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, gotOp, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := codec.BlobToDict(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	reply, err := transport.FrameFromMap(m)
	if err != nil {
		t.Fatalf("FrameFromMap: %v", err)
	}
	return reply, gotOp
}

func TestWebSocket_JSON(t *testing.T) {
	srv, ts := newHTTPServer(t, newCore(t))
	conn := dialWS(t, ts, "")
	codec := serializer.Get("json")

	in := transport.NewRequestFrame(echoRequest())
	reply, op := exchange(t, conn, codec, ws.OpText, in)
	if op != ws.OpText {
		t.Errorf("op = %v, want text", op)
	}
	if reply.Type != transport.FrameResponse || reply.CorrelID != in.ID {
		t.Fatalf("reply = %+v", reply)
	}
	if got := srv.Connections().Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}

	// The connection stays usable after a bad frame.
	if err := wsutil.WriteClientText(conn, []byte("{oops")); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"invalid frame"`) {
		t.Fatalf("reply = %s, want invalid frame error", raw)
	}

	ping := transport.NewPingFrame()
	if reply, _ := exchange(t, conn, codec, ws.OpText, ping); reply.Type != transport.FramePong || reply.CorrelID != ping.ID {
		t.Fatalf("reply = %+v, want pong", reply)
	}
}

func TestWebSocket_Msgpack(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))
	conn := dialWS(t, ts, serializer.NameMsgpack)

	reply, op := exchange(t, conn, serializer.Get(serializer.NameMsgpack), ws.OpBinary, transport.NewRequestFrame(echoRequest()))
	if op != ws.OpBinary {
		t.Errorf("op = %v, want binary", op)
	}
	if reply.Type != transport.FrameResponse {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestWebSocket_UnsupportedFormat(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t))

	resp, err := http.Get(ts.URL + "/soa?format=xml")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocket_MessageTooLargeCloses(t *testing.T) {
	_, ts := newHTTPServer(t, newCore(t), transport.WithMaxMessageBytes(64))
	conn := dialWS(t, ts, "")

	if err := wsutil.WriteClientText(conn, bytes.Repeat([]byte("x"), 128)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), pysoa.ErrMessageTooLarge.Error()) {
		t.Fatalf("reply = %s", raw)
	}
	if _, err := wsutil.ReadServerText(conn); err == nil {
		t.Fatal("expected the connection to be closed")
	}
}

// ── Lifecycle ─────────────────────────────────────────

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := transport.NewServer(newCore(t),
		transport.WithLogger(testLogger()),
		transport.WithShutdownTimeout(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// Wait until the listener answers.
	url := "http://" + ln.Addr().String()
	var status int
	for range 50 {
		status, _ = tryPost(url)
		if status != 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func tryPost(url string) (int, error) {
	codec := serializer.Get("json")
	data, err := codec.DictToBlob(transport.NewRequestFrame(echoRequest()).ToMap())
	if err != nil {
		return 0, err
	}
	resp, err := http.Post(url+"/soa/rpc", codec.MIMEType(), bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func TestRun_ListenError(t *testing.T) {
	srv := transport.NewServer(newCore(t),
		transport.WithLogger(testLogger()),
		transport.WithAddress("256.0.0.1:bad"),
	)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
