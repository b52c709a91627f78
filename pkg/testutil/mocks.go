// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"
)

// MockSigner records every preimage it is asked to sign and returns a fixed
// signature, or Err when set. Safe for concurrent use.
type MockSigner struct {
	mu        sync.Mutex
	Err       error
	Signature []byte
	preimages [][]byte
}

// Sign implements signing.Signer.
func (s *MockSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.preimages = append(s.preimages, cp)
	if s.Signature != nil {
		return s.Signature, nil
	}
	return []byte("mock-signature-sixty-five-bytes-of-deterministic-test-padding-xyz"), nil
}

// Preimages returns copies of every preimage signed so far, in order.
func (s *MockSigner) Preimages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.preimages))
	for i, p := range s.preimages {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// SignCount returns how many preimages were signed.
func (s *MockSigner) SignCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.preimages)
}

// NopPersister satisfies the engine's Persister with a call counter.
type NopPersister struct {
	mu    sync.Mutex
	count int
}

// Persist counts the call and succeeds.
func (p *NopPersister) Persist(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

// Persists returns how many times Persist was called.
func (p *NopPersister) Persists() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
