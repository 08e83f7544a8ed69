// Package canonical implements Forkline's Canonicalizer: a total, pure
// mapping from a value.Value to a stable byte sequence, and a SHA-256
// content hash over those bytes.
//
// The output is a compact JSON-like form with sorted keys and no HTML
// escaping, but under Forkline's own rules: bool and int stay distinct,
// byte sequences have a dedicated encoding, and NaN/Infinity serialize
// as strings.
package canonical

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/sauravvenkat/forkline/pkg/value"
)

// Profile identifies a canonicalization rule set. "strict" is the only
// profile defined so far.
type Profile string

// ProfileStrict is the sole v0 canonicalization profile.
const ProfileStrict Profile = "strict"

// MaxDepth bounds recursion during canonicalization, guarding against
// cyclic or pathologically deep Values.
const MaxDepth = value.DefaultMaxDepth

// BadValueKindError is re-exported for callers that only import this
// package; it is the same type value.FromAny raises.
type BadValueKindError = value.BadValueKindError

// Canonicalize maps v to its canonical byte sequence under profile. Only
// ProfileStrict is supported in v0; any other profile is rejected with a
// BadValueKindError so that callers see a single, consistent error family.
func Canonicalize(v value.Value, profile Profile) ([]byte, error) {
	if profile != ProfileStrict {
		return nil, &value.BadValueKindError{Reason: fmt.Sprintf("unknown canonicalization profile %q", profile)}
	}
	var buf bytes.Buffer
	if err := writeValue(&buf, v, "$", 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustCanonicalizeStrict is a convenience wrapper for call sites that
// always use ProfileStrict; it still returns the error rather than
// panicking, despite the name.
func MustCanonicalizeStrict(v value.Value) ([]byte, error) {
	return Canonicalize(v, ProfileStrict)
}

func writeValue(buf *bytes.Buffer, v value.Value, path string, depth int) error {
	if depth > MaxDepth {
		return &value.BadValueKindError{Path: path, Reason: "exceeds max recursion depth"}
	}

	switch v.Kind() {
	case value.KindNull:
		buf.WriteString("null")
		return nil
	case value.KindBool:
		if v.AsBool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case value.KindInt:
		buf.WriteString(strconv.FormatInt(v.AsInt(), 10))
		return nil
	case value.KindFloat:
		return writeFloat(buf, v.AsFloat())
	case value.KindString:
		return writeString(buf, v.AsString())
	case value.KindBytes:
		buf.WriteString(`{"$bytes":"`)
		buf.WriteString(hex.EncodeToString(v.AsBytes()))
		buf.WriteString(`"}`)
		return nil
	case value.KindSeq:
		return writeSeq(buf, v.AsSeq(), path, depth)
	case value.KindMap:
		return writeMap(buf, v.AsMap(), path, depth)
	default:
		return &value.BadValueKindError{Path: path, Reason: fmt.Sprintf("unknown Kind %v", v.Kind())}
	}
}

func writeSeq(buf *bytes.Buffer, items []value.Value, path string, depth int) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, item, fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]value.Value, path string, depth int) error {
	// Re-key by normalized form so sorting and lookups agree: keys sort
	// post-normalization, not on their raw bytes. Two raw keys collapsing
	// to the same normalized form would make the output depend on map
	// iteration order, so that mapping is rejected instead.
	keys := make([]string, 0, len(m))
	normalized := make(map[string]string, len(m))
	for k := range m {
		nk := normalizeKey(k)
		if _, dup := normalized[nk]; dup {
			return &value.BadValueKindError{Path: path, Reason: fmt.Sprintf("mapping keys collide after normalization: %q", nk)}
		}
		normalized[nk] = k
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, nk := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, nk); err != nil {
			return err
		}
		buf.WriteByte(':')
		orig := normalized[nk]
		if err := writeValue(buf, m[orig], path+"."+nk, depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func normalizeKey(k string) string {
	return collapseNewlines(norm.NFC.String(k))
}

// writeString applies the string canonicalization rules: NFC
// normalization, then newline collapsing, then JSON-style quoting with no
// escaping of non-ASCII bytes.
func writeString(buf *bytes.Buffer, s string) error {
	s = collapseNewlines(norm.NFC.String(s))
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			// collapseNewlines should have removed all \r already.
			buf.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}

// collapseNewlines rewrites "\r\n" and lone "\r" to "\n". It operates
// after NFC normalization so it never splits a combining sequence.
func collapseNewlines(s string) string {
	if len(s) == 0 {
		return s
	}
	var b bytes.Buffer
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\r' {
			b.WriteByte('\n')
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
