// Package ident generates document identifiers: random fixed-length
// alphanumeric ids, and sortable ids whose leading prefix encodes the
// creation timestamp so lexical order equals creation order.
package ident

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// RandomLength matches the id width common document stores assign.
	RandomLength = 20

	// sortablePrefixLen is the fixed width of the base-36 timestamp
	// prefix in Sortable ids. 9 base-36 digits cover millisecond
	// timestamps far past any plausible clock value.
	sortablePrefixLen = 9
	sortableSuffixLen = 11
)

// Random returns a RandomLength-character alphanumeric identifier.
func Random() string {
	buf := make([]byte, RandomLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; fall back to UUID-derived bytes.
		copy(buf, []byte(strings.ReplaceAll(uuid.NewString(), "-", "")))
	}
	out := make([]byte, RandomLength)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

// UUID returns a canonical RFC 4122 random identifier.
func UUID() string {
	return uuid.NewString()
}

// ULID returns a Crockford base-32 ULID, an alternative sortable id.
func ULID() string {
	return ulid.Make().String()
}

// Sortable returns an id whose fixed-width leading prefix is the
// base-36 encoding of the current millisecond timestamp, followed by a
// random alphanumeric suffix. Lexical sort of Sortable ids equals
// creation order.
func Sortable() string {
	return SortableAt(time.Now())
}

// SortableAt is Sortable for an explicit creation time.
func SortableAt(t time.Time) string {
	prefix := strings.ToLower(encodeBase36(t.UnixMilli()))
	if len(prefix) < sortablePrefixLen {
		prefix = strings.Repeat("0", sortablePrefixLen-len(prefix)) + prefix
	}
	return prefix + randomLower(sortableSuffixLen)
}

// SortableTime extracts the creation timestamp embedded in a Sortable
// id.
func SortableTime(id string) (time.Time, error) {
	if len(id) < sortablePrefixLen {
		return time.Time{}, fmt.Errorf("id %q too short for a sortable id", id)
	}
	millis, err := decodeBase36(id[:sortablePrefixLen])
	if err != nil {
		return time.Time{}, fmt.Errorf("id %q: %w", id, err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// Validate checks that a Sortable id's embedded timestamp is not from
// the future relative to now (allowing a small skew window).
func Validate(id string, now time.Time) error {
	created, err := SortableTime(id)
	if err != nil {
		return err
	}
	if created.After(now.Add(5 * time.Second)) {
		return fmt.Errorf("id %q claims a creation time in the future (%s)", id, created)
	}
	return nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func encodeBase36(n int64) string {
	if n == 0 {
		return "0"
	}
	var sb []byte
	for n > 0 {
		sb = append([]byte{base36[n%36]}, sb...)
		n /= 36
	}
	return string(sb)
}

func decodeBase36(s string) (int64, error) {
	var n int64
	for _, r := range s {
		idx := strings.IndexRune(base36, r)
		if idx < 0 {
			return 0, fmt.Errorf("invalid base36 digit %q", r)
		}
		n = n*36 + int64(idx)
	}
	return n, nil
}

func randomLower(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, []byte(strings.ReplaceAll(uuid.NewString(), "-", "")))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = base36[int(b)%36]
	}
	return string(out)
}
