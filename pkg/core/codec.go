package core

import "time"

// Codec converts between local field values and the store's native
// representation. The recursive walk lives here once; custom type
// coercions hook in at the leaves only.
//
// Encoding maps time.Time to Timestamp and passes primitives, nested
// maps, and slices through element-wise. Decoding reverses it. The
// Delete sentinel survives encoding untouched so adapters can act on it.
type Codec struct {
	// EncodeValue, when set, is consulted for every leaf value before
	// the default rules. Returning ok=false falls through to them.
	EncodeValue func(v any) (encoded any, ok bool)

	// DecodeValue mirrors EncodeValue on the way back in.
	DecodeValue func(v any) (decoded any, ok bool)
}

// Encode serializes a whole field map for the store.
func (c Codec) Encode(fields FieldMap) FieldMap {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = c.encodeValue(v)
	}
	return out
}

// Decode deserializes a store field map into local values.
func (c Codec) Decode(fields FieldMap) FieldMap {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = c.decodeValue(v)
	}
	return out
}

func (c Codec) encodeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return c.Encode(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = c.encodeValue(e)
		}
		return out
	}
	if c.EncodeValue != nil {
		if enc, ok := c.EncodeValue(v); ok {
			return enc
		}
	}
	if t, ok := v.(time.Time); ok {
		return NewTimestamp(t)
	}
	return v
}

func (c Codec) decodeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return c.Decode(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = c.decodeValue(e)
		}
		return out
	}
	if c.DecodeValue != nil {
		if dec, ok := c.DecodeValue(v); ok {
			return dec
		}
	}
	if ts, ok := v.(Timestamp); ok {
		return ts.Time()
	}
	return v
}
