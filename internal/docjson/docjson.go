// Package docjson serializes store field maps to JSON and back for the
// persistent adapters. Timestamps need a tagged wrapper: a bare JSON
// object would decode as a plain map and lose its type.
package docjson

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/silt/pkg/core"
)

const timestampTag = "$timestamp"

// Marshal encodes a field map, wrapping core.Timestamp values in a
// tagged object. The delete sentinel must never reach persistence;
// encountering one is a programming error and fails loudly.
func Marshal(fields core.FieldMap) ([]byte, error) {
	enc, err := encodeValue(map[string]any(fields))
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(enc, "", "  ")
}

// Unmarshal decodes a document file back into a field map, restoring
// tagged timestamps.
func Unmarshal(data []byte) (core.FieldMap, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid document json: %w", err)
	}
	return decodeValue(raw).(map[string]any), nil
}

func encodeValue(v any) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			enc, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			enc, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case core.Timestamp:
		return map[string]any{timestampTag: map[string]any{"seconds": tv.Seconds, "nanos": tv.Nanos}}, nil
	}
	if core.IsDelete(v) {
		return nil, fmt.Errorf("delete sentinel must not be persisted")
	}
	return v, nil
}

func decodeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		if ts, ok := asTimestamp(tv); ok {
			return ts
		}
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = decodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = decodeValue(e)
		}
		return out
	}
	return v
}

func asTimestamp(m map[string]any) (core.Timestamp, bool) {
	if len(m) != 1 {
		return core.Timestamp{}, false
	}
	inner, ok := m[timestampTag].(map[string]any)
	if !ok {
		return core.Timestamp{}, false
	}
	secs, sok := inner["seconds"].(float64)
	nanos, nok := inner["nanos"].(float64)
	if !sok || !nok {
		return core.Timestamp{}, false
	}
	return core.Timestamp{Seconds: int64(secs), Nanos: int32(nanos)}, true
}
