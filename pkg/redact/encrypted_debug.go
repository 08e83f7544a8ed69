package redact

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/sauravvenkat/forkline/pkg/canonical"
	"github.com/sauravvenkat/forkline/pkg/value"
)

// KeySize is the secretbox key size Forkline's ENCRYPTED_DEBUG mode uses.
const KeySize = 32

// SealEncryptedDebug redacts v under ENCRYPTEDDEBUGPolicy (masking secrets
// by construction), canonicalizes the result, and seals the canonical
// bytes with secretbox under an out-of-band 32-byte key. Returns the
// nonce-prefixed ciphertext.
func SealEncryptedDebug(v value.Value, key *[KeySize]byte) ([]byte, error) {
	redacted, err := Apply(ENCRYPTEDDEBUGPolicy(), v)
	if err != nil {
		return nil, err
	}
	canon, err := canonical.Canonicalize(redacted, canonical.ProfileStrict)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("redact: nonce generation failed: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], canon, &nonce, key)
	return sealed, nil
}

// OpenEncryptedDebug reverses SealEncryptedDebug, returning the
// canonical bytes that were sealed. Provided for completeness; not
// required by any core invariant.
func OpenEncryptedDebug(sealed []byte, key *[KeySize]byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, fmt.Errorf("redact: sealed payload too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("redact: decryption failed: authentication mismatch")
	}
	return opened, nil
}
