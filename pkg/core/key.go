package core

import (
	"fmt"
	"math/big"
	"strings"
)

// Key maps template placeholder names to their values. Values may be
// strings, integer kinds, or *big.Int; building a path stringifies
// them.
type Key map[string]any

// Template is a slash-delimited path pattern. Segments wrapped in
// braces ("orgs/{org}/users/{uid}") are placeholders bound to key
// fields; all other segments must match literally.
type Template struct {
	raw      string
	segments []segment
}

type segment struct {
	literal     string
	placeholder string // non-empty when the segment is "{name}"
}

// ParseTemplate splits a template into segments. An empty template
// yields a zero-segment Template, which only matches the empty path.
func ParseTemplate(raw string) Template {
	t := Template{raw: raw}
	if raw == "" {
		return t
	}
	for _, part := range strings.Split(raw, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2 {
			t.segments = append(t.segments, segment{placeholder: part[1 : len(part)-1]})
		} else {
			t.segments = append(t.segments, segment{literal: part})
		}
	}
	return t
}

// String returns the raw template text.
func (t Template) String() string { return t.raw }

// Placeholders lists the placeholder names in template order.
func (t Template) Placeholders() []string {
	var names []string
	for _, s := range t.segments {
		if s.placeholder != "" {
			names = append(names, s.placeholder)
		}
	}
	return names
}

// Build substitutes the key into the template and returns the concrete
// path. A placeholder missing from the key substitutes the empty
// string; a key value of unsupported kind is an error.
func (t Template) Build(key Key) (string, error) {
	parts := make([]string, len(t.segments))
	for i, s := range t.segments {
		if s.placeholder == "" {
			parts[i] = s.literal
			continue
		}
		v, ok := key[s.placeholder]
		if !ok {
			parts[i] = ""
			continue
		}
		str, err := stringifyKeyValue(v)
		if err != nil {
			return "", &PathError{Template: t.raw, Reason: fmt.Sprintf("placeholder %q: %v", s.placeholder, err)}
		}
		parts[i] = str
	}
	return strings.Join(parts, "/"), nil
}

// ParsePath matches a concrete path against the template and recovers
// the structured key. Segment-count or literal mismatches are hard
// errors.
func (t Template) ParsePath(path string) (Key, error) {
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}
	if len(parts) != len(t.segments) {
		return nil, &PathError{
			Template: t.raw,
			Path:     path,
			Reason:   fmt.Sprintf("expected %d segments, got %d", len(t.segments), len(parts)),
		}
	}
	key := make(Key)
	for i, s := range t.segments {
		if s.placeholder != "" {
			key[s.placeholder] = parts[i]
			continue
		}
		if parts[i] != s.literal {
			return nil, &PathError{
				Template: t.raw,
				Path:     path,
				Reason:   fmt.Sprintf("segment %d: expected %q, got %q", i, s.literal, parts[i]),
			}
		}
	}
	return key, nil
}

// JoinPath joins raw path segments into a slash-delimited path.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// ParentPath returns the path with its last segment removed, or ""
// when there is no parent.
func ParentPath(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// LastSegment returns the final segment of a path (the document id for
// a document path).
func LastSegment(path string) string {
	idx := strings.LastIndexByte(path, '/')
	return path[idx+1:]
}

func stringifyKeyValue(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", tv), nil
	case *big.Int:
		if tv == nil {
			return "", fmt.Errorf("nil *big.Int key value")
		}
		return tv.String(), nil
	default:
		return "", fmt.Errorf("unsupported key value type %T", v)
	}
}
