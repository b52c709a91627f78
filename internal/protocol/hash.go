// Package protocol implements the canonical byte-level encoding of the
// payment protocol: secret generation, keccak hashing, address normalisation
// and the exact signing preimage of every message type. The packed layouts are
// shared with the hub and partner light clients and must stay bit-stable.
package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const secretLength = 32

// Keccak256 returns the keccak-256 digest of data.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// GenerateSecret produces a random 32-byte lock preimage and its keccak-256
// hash, both hex encoded with a 0x prefix. The secret must not leave the
// process before the reveal step.
func GenerateSecret() (secret, secretHash string, err error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("protocol: generate secret: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), "0x" + hex.EncodeToString(Keccak256(buf)), nil
}

// HexToBytes decodes a 0x-prefixed or bare hex string.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid hex %q: %w", s, err)
	}
	return b, nil
}

// ChecksumAddress normalises addr to its mixed-case checksum form, the
// canonical representation used on every envelope.
func ChecksumAddress(addr string) (string, error) {
	raw, err := HexToBytes(addr)
	if err != nil {
		return "", err
	}
	if len(raw) != addressLength {
		return "", fmt.Errorf("protocol: address %q is %d bytes, want %d", addr, len(raw), addressLength)
	}

	lower := hex.EncodeToString(raw)
	digest := Keccak256([]byte(lower))
	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' {
			nibble := digest[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x08 != 0 {
				c = c - 'a' + 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out), nil
}

// AddressesEqual compares two addresses ignoring case and 0x prefixes.
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
