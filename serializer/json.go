package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// JSON encodes job dictionaries as JSON. Decoded numbers become int64 when
// integral and float64 otherwise, so integer switches and ids survive a
// round trip. Integers too large for int64 decode as their decimal string.
type JSON struct{}

func (s *JSON) DictToBlob(m map[string]any) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return data, nil
}

func (s *JSON) BlobToDict(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: message is not a mapping", ErrInvalidMessage)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after message", ErrInvalidMessage)
	}
	return normalizeJSON(m).(map[string]any), nil
}

func (s *JSON) Name() string { return NameJSON }

func (s *JSON) MIMEType() string { return MIMEJSON }

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeJSON(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeJSON(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		// Integer literals outside int64 keep their exact decimal text.
		if !strings.ContainsAny(t.String(), ".eE") {
			return t.String()
		}
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) {
			return t.String()
		}
		return f
	default:
		return v
	}
}
