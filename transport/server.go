package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/sync/errgroup"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/id"
	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/serializer"
)

// Processor runs one job. *server.Server satisfies it.
type Processor interface {
	ProcessRequest(ctx context.Context, req *job.Request) (*job.Response, error)
}

type route struct {
	pattern string
	handler http.Handler
}

// Server hosts a Processor over WebSocket and one-shot HTTP RPC. It turns
// bytes into job requests and job outcomes back into frames; everything in
// between belongs to the Processor.
type Server struct {
	core    Processor
	codec   serializer.Serializer
	conns   *ConnectionManager
	limiter *peerLimiter
	logger  *slog.Logger
	routes  []route

	address         string
	basePath        string
	rateLimit       float64
	rateBurst       int
	maxMessageBytes int64
	shutdownTimeout time.Duration
}

// NewServer creates a transport for core. Unset options fall back to
// pysoa.DefaultConfig.
func NewServer(core Processor, opts ...Option) *Server {
	def := pysoa.DefaultConfig()
	s := &Server{
		core:            core,
		codec:           serializer.Get(def.Transport.Codec),
		conns:           NewConnectionManager(),
		logger:          slog.Default(),
		address:         def.Transport.Address,
		basePath:        def.Transport.Path,
		rateLimit:       def.Transport.RateLimit,
		rateBurst:       def.Transport.RateBurst,
		maxMessageBytes: def.Transport.MaxMessageBytes,
		shutdownTimeout: def.ShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.basePath = "/" + strings.Trim(s.basePath, "/")
	s.limiter = newPeerLimiter(s.rateLimit, s.rateBurst)
	return s
}

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// Handler returns an http.Handler serving the WebSocket endpoint at the
// base path, the RPC endpoint at {path}/rpc and any extra routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.basePath, s.handleWebSocket)
	mux.HandleFunc("POST "+strings.TrimSuffix(s.basePath, "/")+"/rpc", s.handleHTTPRPC)
	for _, r := range s.routes {
		mux.Handle(r.pattern, r.handler)
	}
	return mux
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for at most the shutdown timeout. Open WebSocket connections
// are closed when draining starts.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("transport listening",
			slog.String("address", ln.Addr().String()),
			slog.String("path", s.basePath),
			slog.String("codec", s.codec.Name()),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("transport: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("transport shutting down", slog.Int("connections", s.conns.Count()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.conns.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("transport: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// handle turns one inbound frame into its reply.
func (s *Server) handle(ctx context.Context, f *Frame, peer string) *Frame {
	switch f.Type {
	case FramePing:
		return &Frame{
			ID:        id.NewFrameID().String(),
			Type:      FramePong,
			CorrelID:  f.ID,
			Timestamp: time.Now().UTC(),
		}
	case FrameRequest:
	default:
		return NewErrorFrame(f.ID, ErrCodeBadRequest, fmt.Sprintf("unsupported frame type %q", f.Type))
	}

	if !s.limiter.Allow(peer, time.Now()) {
		s.logger.Warn("transport: request rejected",
			slog.String("peer", peer),
			slog.String("error", pysoa.ErrRateLimited.Error()),
		)
		return NewErrorFrame(f.ID, ErrCodeRateLimited, "rate limit exceeded")
	}

	if f.Job == nil {
		return NewErrorFrame(f.ID, ErrCodeBadRequest, "request frame carries no job")
	}
	req, err := job.ParseRequest(f.Job)
	if err != nil {
		return s.failureFrame(f.ID, err)
	}

	resp, err := s.core.ProcessRequest(ctx, req)
	if err != nil {
		return s.failureFrame(f.ID, err)
	}
	return NewResponseFrame(f.ID, resp)
}

// failureFrame maps a processing error to a reply. Only job rejections
// carry their details to the peer.
func (s *Server) failureFrame(correlID string, err error) *Frame {
	var je *job.JobError
	if errors.As(err, &je) {
		return NewJobErrorFrame(correlID, je)
	}
	if errors.Is(err, pysoa.ErrServerClosed) {
		return NewErrorFrame(correlID, ErrCodeUnavailable, "server closed")
	}
	s.logger.Error("transport: request failed",
		slog.String("correl_id", correlID),
		slog.String("kind", job.Kind(err)),
		slog.String("error", err.Error()),
	)
	return NewErrorFrame(correlID, ErrCodeInternal, "internal server error")
}

// encode serializes f, replacing it with an internal error frame when its
// payload cannot be represented in the codec.
func (s *Server) encode(codec serializer.Serializer, f *Frame) (*Frame, []byte, error) {
	data, err := codec.DictToBlob(f.ToMap())
	if err == nil {
		return f, data, nil
	}
	s.logger.Error("transport: encode frame",
		slog.String("codec", codec.Name()),
		slog.String("type", string(f.Type)),
		slog.String("error", err.Error()),
	)
	f = NewErrorFrame(f.CorrelID, ErrCodeInternal, "internal server error")
	data, err = codec.DictToBlob(f.ToMap())
	return f, data, err
}

func decodeFrame(codec serializer.Serializer, data []byte) (*Frame, error) {
	m, err := codec.BlobToDict(data)
	if err != nil {
		return nil, err
	}
	return FrameFromMap(m)
}

// ──────────────────────────────────────────────────
// HTTP RPC
// ──────────────────────────────────────────────────

// handleHTTPRPC answers one request frame per HTTP request.
func (s *Server) handleHTTPRPC(w http.ResponseWriter, r *http.Request) {
	codec := s.codec
	if ct := r.Header.Get("Content-Type"); ct != "" {
		c, ok := serializer.ForMIMEType(ct)
		if !ok {
			s.writeHTTP(w, codec, NewErrorFrame("", ErrCodeUnsupportedType, "unsupported content type"))
			return
		}
		codec = c
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeHTTP(w, codec, NewErrorFrame("", ErrCodeTooLarge, pysoa.ErrMessageTooLarge.Error()))
			return
		}
		s.writeHTTP(w, codec, NewErrorFrame("", ErrCodeBadRequest, "invalid request body"))
		return
	}

	frame, err := decodeFrame(codec, body)
	if err != nil {
		s.writeHTTP(w, codec, NewErrorFrame("", ErrCodeBadRequest, "invalid frame"))
		return
	}

	s.writeHTTP(w, codec, s.handle(r.Context(), frame, peerOf(r)))
}

// writeHTTP writes f with a status derived from its error code. Response
// and job_error frames are both successful exchanges.
func (s *Server) writeHTTP(w http.ResponseWriter, codec serializer.Serializer, f *Frame) {
	f, data, err := s.encode(codec, f)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if f.Type == FrameErr && f.Error != nil {
		status = f.Error.Code
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}
	}

	w.Header().Set("Content-Type", codec.MIMEType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("transport: write response", slog.String("error", err.Error()))
	}
}

// ──────────────────────────────────────────────────
// WebSocket
// ──────────────────────────────────────────────────

// handleWebSocket upgrades the request and serves frames until the peer
// disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	codec := s.codec
	if format := r.URL.Query().Get("format"); format != "" {
		if format != serializer.NameJSON && format != serializer.NameMsgpack {
			http.Error(w, "unsupported format", http.StatusBadRequest)
			return
		}
		codec = serializer.Get(format)
	}

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("transport: websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := NewConnection(id.NewConnectionID().String(), peerOf(r), codec)
	conn.netConn = netConn
	s.conns.Add(conn)
	s.logger.Info("transport: websocket connected",
		slog.String("conn_id", conn.ID),
		slog.String("peer", conn.Peer),
		slog.String("codec", codec.Name()),
	)
	defer func() {
		s.conns.Remove(conn.ID)
		_ = netConn.Close()
		s.logger.Info("transport: websocket disconnected", slog.String("conn_id", conn.ID))
	}()

	if err := s.serveConn(r.Context(), netConn, conn); err != nil && !isClosed(err) {
		s.logger.Warn("transport: websocket error",
			slog.String("conn_id", conn.ID),
			slog.String("error", err.Error()),
		)
	}
}

// serveConn runs the frame loop for one WebSocket connection. Frames are
// answered in arrival order.
func (s *Server) serveConn(ctx context.Context, netConn net.Conn, conn *Connection) error {
	op := ws.OpText
	if conn.Codec.Name() == serializer.NameMsgpack {
		op = ws.OpBinary
	}

	controlHandler := wsutil.ControlFrameHandler(netConn, ws.StateServerSide)
	rd := &wsutil.Reader{
		Source:         netConn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(rd, s.maxMessageBytes+1))
		if err != nil {
			return err
		}
		conn.Touch()

		if int64(len(data)) > s.maxMessageBytes {
			//nolint:errcheck // best-effort notice before disconnect
			s.writeWS(netConn, op, conn.Codec, NewErrorFrame("", ErrCodeTooLarge, pysoa.ErrMessageTooLarge.Error()))
			//nolint:errcheck // connection is being dropped
			wsutil.WriteServerMessage(netConn, ws.OpClose,
				ws.NewCloseFrameBody(ws.StatusMessageTooBig, "message too large"))
			return pysoa.ErrMessageTooLarge
		}

		frame, err := decodeFrame(conn.Codec, data)
		if err != nil {
			if writeErr := s.writeWS(netConn, op, conn.Codec, NewErrorFrame("", ErrCodeBadRequest, "invalid frame")); writeErr != nil {
				return writeErr
			}
			continue
		}

		if err := s.writeWS(netConn, op, conn.Codec, s.handle(ctx, frame, conn.Peer)); err != nil {
			return err
		}
	}
}

func (s *Server) writeWS(w io.Writer, op ws.OpCode, codec serializer.Serializer, f *Frame) error {
	_, data, err := s.encode(codec, f)
	if err != nil {
		return err
	}
	return wsutil.WriteServerMessage(w, op, data)
}

func isClosed(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// peerOf returns the remote host of r without its port.
func peerOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
