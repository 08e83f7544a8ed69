package canonical

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sauravvenkat/forkline/pkg/value"
)

// ContentHash returns the 64-character lowercase-hex SHA-256 digest of
// v's canonical byte encoding under ProfileStrict.
func ContentHash(v value.Value) (string, error) {
	b, err := Canonicalize(v, ProfileStrict)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the lowercase-hex SHA-256 digest of raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Preview renders a short human-readable form of v's content hash for
// logs: "sha256:<hash>:<first-16-hex-of-body-prefix>". Comparison must
// always use the full hex from ContentHash; Preview exists only for
// diagnostics.
func Preview(v value.Value) (string, error) {
	b, err := Canonicalize(v, ProfileStrict)
	if err != nil {
		return "", err
	}
	full := HashBytes(b)
	prefix := b
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "sha256:" + full + ":" + hex.EncodeToString(prefix), nil
}

// ConcatHash hashes the canonical encoding of an ordered sequence of
// Values as a single Value (a Seq); this is how the fingerprint hashes
// over a step's ordered payload list are computed.
func ConcatHash(items []value.Value) (string, error) {
	return ContentHash(value.Seq(items...))
}
