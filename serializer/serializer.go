// Package serializer converts job dictionaries to and from bytes. The core
// never calls a serializer; transports and clients use one to move
// requests and responses over the wire.
package serializer

import (
	"errors"
	"mime"
	"strings"
)

// Serializer is the contract between a transport and the wire format.
type Serializer interface {
	// DictToBlob encodes a mapping. It fails with ErrInvalidField when a
	// value cannot be represented in the format.
	DictToBlob(m map[string]any) ([]byte, error)

	// BlobToDict decodes bytes into a mapping. It fails with
	// ErrInvalidMessage when the bytes are not a well-formed mapping.
	BlobToDict(data []byte) (map[string]any, error)

	// Name returns the serializer identifier (e.g., "json", "msgpack").
	Name() string

	// MIMEType returns the content type used on HTTP transports.
	MIMEType() string
}

var (
	// ErrInvalidField is returned when a value cannot be encoded.
	ErrInvalidField = errors.New("serializer: invalid field")
	// ErrInvalidMessage is returned when bytes cannot be decoded.
	ErrInvalidMessage = errors.New("serializer: invalid message")
)

// Name constants for format negotiation.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// MIME types served by the built-in serializers.
const (
	MIMEJSON    = "application/json"
	MIMEMsgpack = "application/msgpack"
)

// Get returns a serializer by name. Defaults to JSON.
func Get(name string) Serializer {
	switch strings.ToLower(name) {
	case NameMsgpack:
		return &Msgpack{}
	default:
		return &JSON{}
	}
}

// ForMIMEType returns the serializer for a Content-Type header value.
// Parameters such as charset are ignored.
func ForMIMEType(contentType string) (Serializer, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	switch mediaType {
	case MIMEJSON:
		return &JSON{}, true
	case MIMEMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return &Msgpack{}, true
	default:
		return nil, false
	}
}
