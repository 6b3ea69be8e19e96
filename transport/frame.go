package transport

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/arareko/pysoa/id"
	"github.com/arareko/pysoa/job"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameJobError FrameType = "job_error"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Well-known error frame codes.
const (
	ErrCodeBadRequest      = 400
	ErrCodeTooLarge        = 413
	ErrCodeUnsupportedType = 415
	ErrCodeRateLimited     = 429
	ErrCodeInternal        = 500
	ErrCodeUnavailable     = 503
)

// Frame is the envelope for every message exchanged with a transport.
// On the wire it is a plain dictionary so any serializer can carry it.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `mapstructure:"id"`

	// Type categorizes the frame.
	Type FrameType `mapstructure:"type"`

	// CorrelID links a reply to the frame it answers.
	CorrelID string `mapstructure:"correl_id"`

	// Job carries the job request dictionary on request frames.
	Job map[string]any `mapstructure:"job"`

	// Response carries the job response dictionary on response frames.
	Response map[string]any `mapstructure:"response"`

	// Errors carries the rejection reasons on job_error frames.
	Errors []job.Error `mapstructure:"errors"`

	// Error describes a transport-level failure on error frames.
	Error *ErrorDetail `mapstructure:"error"`

	// Timestamp records when the frame was created.
	Timestamp time.Time `mapstructure:"ts"`
}

// ErrorDetail describes an error frame.
type ErrorDetail struct {
	Code    int    `mapstructure:"code"`
	Message string `mapstructure:"message"`
}

// NewRequestFrame wraps a job request.
func NewRequestFrame(req *job.Request) *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameRequest,
		Job:       req.ToMap(),
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseFrame answers a request with a job response.
func NewResponseFrame(correlID string, resp *job.Response) *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Response:  resp.ToMap(),
		Timestamp: time.Now().UTC(),
	}
}

// NewJobErrorFrame answers a request whose job was rejected.
func NewJobErrorFrame(correlID string, je *job.JobError) *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameJobError,
		CorrelID:  correlID,
		Errors:    je.Normalized(),
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorFrame answers a frame that could not be handled.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       id.NewFrameID().String(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewPingFrame creates a keepalive probe.
func NewPingFrame() *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FramePing,
		Timestamp: time.Now().UTC(),
	}
}

// ToMap returns the frame as a dictionary, omitting empty sections.
func (f *Frame) ToMap() map[string]any {
	m := map[string]any{
		"id":   f.ID,
		"type": string(f.Type),
		"ts":   f.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if f.CorrelID != "" {
		m["correl_id"] = f.CorrelID
	}
	if f.Job != nil {
		m["job"] = f.Job
	}
	if f.Response != nil {
		m["response"] = f.Response
	}
	if f.Errors != nil {
		errs := make([]any, len(f.Errors))
		for i, e := range f.Errors {
			errs[i] = e.ToMap()
		}
		m["errors"] = errs
	}
	if f.Error != nil {
		m["error"] = map[string]any{
			"code":    f.Error.Code,
			"message": f.Error.Message,
		}
	}
	return m
}

// FrameFromMap decodes a dictionary produced by ToMap.
func FrameFromMap(raw map[string]any) (*Frame, error) {
	var f Frame
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     &f,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type")
	}
	return &f, nil
}
