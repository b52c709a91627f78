// Package signing defines the host-provided signing capability. The engine
// never handles key material itself; it hands preimage bytes to a Signer and
// attaches whatever signature comes back.
package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrRejected is returned when the signer declines to sign, for example on
// user rejection in a wallet UI. Callers treat it as retryable with no side
// effects.
var ErrRejected = errors.New("signing rejected")

// Signer signs an opaque byte buffer. Implementations may block on user
// interaction or remote devices and must honour context cancellation.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// Ed25519Signer signs with a local ed25519 key. It stands in for a real
// wallet integration in development setups; the hub only relays signatures,
// so the scheme is between the client and its counterparties.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer wraps an existing private key.
func NewEd25519Signer(key ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{key: key}
}

// LoadEd25519Signer reads a hex-encoded 32-byte seed from path.
func LoadEd25519Signer(path string) (*Ed25519Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: read key file: %w", err)
	}
	seedHex := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("signing: decode key file: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing: key seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign produces an ed25519 signature over data.
func (s *Ed25519Signer) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(s.key, data), nil
}
