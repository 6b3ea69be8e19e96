// Package client calls a remote pysoa service over the WebSocket transport.
//
// Usage:
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/soa",
//	    client.WithFormat("msgpack"),
//	    client.WithReconnect(5),
//	)
//	defer c.Close()
//
//	resp, err := c.Call(ctx, job.NewRequest(header,
//	    job.ActionRequest{Action: "square", Body: map[string]any{"n": 7}},
//	))
//	var je *job.JobError
//	if errors.As(err, &je) {
//	    // the job was rejected; je.Errors says why
//	}
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/backoff"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/serializer"
	"github.com/arareko/pysoa/transport"
)

// RemoteError is a transport-level failure reported by the server in an
// error frame.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("pysoa/client: remote error %d: %s", e.Code, e.Message)
}

// Unwrap maps well-known codes to the package sentinels so callers can use
// errors.Is.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case transport.ErrCodeRateLimited:
		return pysoa.ErrRateLimited
	case transport.ErrCodeTooLarge:
		return pysoa.ErrMessageTooLarge
	case transport.ErrCodeUnavailable:
		return pysoa.ErrServerClosed
	default:
		return nil
	}
}

type result struct {
	frame *transport.Frame
	err   error
}

// Client is a WebSocket client for a pysoa transport. It is safe for
// concurrent use; concurrent calls are correlated by frame id.
type Client struct {
	url    string
	format string
	codec  serializer.Serializer
	logger *slog.Logger

	// Reconnection.
	reconnect  bool
	maxRetries int
	backoff    backoff.Strategy

	// Connection state.
	mu     sync.Mutex
	conn   net.Conn
	closed atomic.Bool
	done   chan struct{}

	// Request-response correlation.
	pending sync.Map // frame id → chan result
}

// Dial connects to the transport at rawURL, e.g. "ws://host:8080/soa".
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	c := &Client{
		format:     serializer.NameJSON,
		logger:     slog.Default(),
		maxRetries: 5,
		backoff:    backoff.DefaultStrategy(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.codec = serializer.Get(c.format)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pysoa/client: parse url: %w", err)
	}
	q := u.Query()
	q.Set("format", c.codec.Name())
	u.RawQuery = q.Encode()
	c.url = u.String()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("pysoa/client: dial: %w", err)
	}
	c.conn = conn
	go c.readLoop(conn)

	return c, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.logger.Info("pysoa client connected",
		slog.String("url", c.url),
		slog.String("format", c.codec.Name()),
	)
	return conn, nil
}

// Call sends req and waits for its outcome. A rejected job is returned as
// a *job.JobError; transport failures as a *RemoteError.
func (c *Client) Call(ctx context.Context, req *job.Request) (*job.Response, error) {
	reply, err := c.roundTrip(ctx, transport.NewRequestFrame(req))
	if err != nil {
		return nil, err
	}

	switch reply.Type {
	case transport.FrameResponse:
		return job.ResponseFromMap(reply.Response)
	case transport.FrameJobError:
		return nil, job.NewJobError(reply.Errors...)
	case transport.FrameErr:
		return nil, remoteError(reply)
	default:
		return nil, fmt.Errorf("%w: %q", pysoa.ErrUnknownFrame, reply.Type)
	}
}

// Ping measures the round trip to the server.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	reply, err := c.roundTrip(ctx, transport.NewPingFrame())
	if err != nil {
		return 0, err
	}
	if reply.Type == transport.FrameErr {
		return 0, remoteError(reply)
	}
	if reply.Type != transport.FramePong {
		return 0, fmt.Errorf("%w: %q", pysoa.ErrUnknownFrame, reply.Type)
	}
	return time.Since(start), nil
}

func remoteError(f *transport.Frame) error {
	if f.Error == nil {
		return &RemoteError{Code: transport.ErrCodeInternal, Message: "unknown error"}
	}
	return &RemoteError{Code: f.Error.Code, Message: f.Error.Message}
}

// roundTrip sends a frame and waits for the reply correlated to it.
func (c *Client) roundTrip(ctx context.Context, f *transport.Frame) (*transport.Frame, error) {
	if c.closed.Load() {
		return nil, pysoa.ErrClientClosed
	}

	ch := make(chan result, 1)
	c.pending.Store(f.ID, ch)
	defer c.pending.Delete(f.ID)

	if err := c.writeFrame(f); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.frame, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFrame encodes and sends a frame over the current connection.
func (c *Client) writeFrame(f *transport.Frame) error {
	data, err := c.codec.DictToBlob(f.ToMap())
	if err != nil {
		return fmt.Errorf("pysoa/client: encode frame: %w", err)
	}

	op := ws.OpText
	if c.codec.Name() == serializer.NameMsgpack {
		op = ws.OpBinary
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return pysoa.ErrNotConnected
	}
	if err := wsutil.WriteClientMessage(c.conn, op, data); err != nil {
		return fmt.Errorf("pysoa/client: write frame: %w", err)
	}
	return nil
}

// readLoop routes replies from conn to their pending calls until conn
// fails.
func (c *Client) readLoop(conn net.Conn) {
	for {
		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			c.dropConn(conn)
			if c.closed.Load() {
				return
			}
			c.logger.Warn("pysoa client read error", slog.String("error", err.Error()))
			c.failPending(pysoa.ErrNotConnected)
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}

		m, err := c.codec.BlobToDict(data)
		if err != nil {
			c.logger.Warn("pysoa client: invalid frame", slog.String("error", err.Error()))
			continue
		}
		frame, err := transport.FrameFromMap(m)
		if err != nil {
			c.logger.Warn("pysoa client: invalid frame", slog.String("error", err.Error()))
			continue
		}

		if val, ok := c.pending.Load(frame.CorrelID); ok {
			ch := val.(chan result) //nolint:errcheck // pending map always stores chan result
			select {
			case ch <- result{frame: frame}:
			default:
			}
			continue
		}
		c.logger.Debug("pysoa client: uncorrelated frame",
			slog.String("type", string(frame.Type)),
			slog.String("correl_id", frame.CorrelID),
		)
	}
}

// dropConn forgets conn if it is still the current connection.
func (c *Client) dropConn(conn net.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// failPending completes every waiting call with err.
func (c *Client) failPending(err error) {
	c.pending.Range(func(_, val any) bool {
		ch := val.(chan result) //nolint:errcheck // pending map always stores chan result
		select {
		case ch <- result{err: err}:
		default:
		}
		return true
	})
}

// tryReconnect redials using the backoff strategy until it succeeds, the
// retry budget is spent or the client is closed.
func (c *Client) tryReconnect() {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		delay := c.backoff.Delay(attempt)
		c.logger.Info("pysoa client reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn("pysoa client reconnect failed", slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		if c.closed.Load() {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("pysoa client reconnected")
		go c.readLoop(conn)
		return
	}
	c.logger.Error("pysoa client: max reconnection attempts reached")
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection and fails outstanding calls with
// pysoa.ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.failPending(pysoa.ErrClientClosed)
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}
