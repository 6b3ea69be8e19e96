package serializer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack encodes job dictionaries as MessagePack. Map keys are sorted on
// encode so equal dictionaries produce equal bytes.
type Msgpack struct{}

func (s *Msgpack) DictToBlob(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return buf.Bytes(), nil
}

func (s *Msgpack) BlobToDict(data []byte) (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	normalized, err := normalizeMsgpack(v)
	if err != nil {
		return nil, err
	}
	m, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: message is not a mapping", ErrInvalidMessage)
	}
	return m, nil
}

func (s *Msgpack) Name() string { return NameMsgpack }

func (s *Msgpack) MIMEType() string { return MIMEMsgpack }

// normalizeMsgpack turns generic maps into map[string]any and unsigned
// integers into int64 where they fit.
func normalizeMsgpack(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			n, err := normalizeMsgpack(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: map key %v is not a string", ErrInvalidMessage, k)
			}
			n, err := normalizeMsgpack(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		for i, item := range t {
			n, err := normalizeMsgpack(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t), nil
		}
		return t, nil
	default:
		return v, nil
	}
}
