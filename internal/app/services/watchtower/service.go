// Package watchtower builds and submits non-closing balance proofs: the
// partner's latest balance proof counter-signed by this client so the hub can
// act on a stale channel close while the client is offline.
package watchtower

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/metrics"
	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/protocol"
	"github.com/lumino-network/light-client/internal/signing"
	"github.com/lumino-network/light-client/pkg/logger"
)

const watchtowerPath = "watchtower"

// ErrPaymentNotFound means the referenced payment id is unknown.
var ErrPaymentNotFound = errors.New("watchtower: payment not found")

// HubClient is the slice of the hub transport the service needs.
type HubClient interface {
	Put(ctx context.Context, path string, body, out interface{}) error
}

// Persister snapshots the full application state after a mutation.
type Persister interface {
	Persist(ctx context.Context) error
}

// Deps are the collaborators of the service.
type Deps struct {
	Payments storage.PaymentStore
	Proofs   storage.NonClosingProofStore
	Hub      HubClient
	Signer   signing.Signer
	Persist  Persister
	Log      *logger.Logger

	// ResubmitSchedule is a cron expression for retrying failed
	// submissions. Empty disables the retry loop.
	ResubmitSchedule string
}

// Service owns the watchtower delegation flow.
type Service struct {
	payments storage.PaymentStore
	proofs   storage.NonClosingProofStore
	hub      HubClient
	signer   signing.Signer
	persist  Persister
	log      *logger.Logger
	schedule string

	mu    sync.Mutex
	retry map[string]retryItem
	cron  cronRunner
}

type retryItem struct {
	token string
	proof payment.NonClosingProof
}

// New builds a watchtower service.
func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("watchtower")
	}
	return &Service{
		payments: deps.Payments,
		proofs:   deps.Proofs,
		hub:      deps.Hub,
		signer:   deps.Signer,
		persist:  deps.Persist,
		log:      log,
		schedule: deps.ResubmitSchedule,
		retry:    make(map[string]retryItem),
	}
}

// Submit counter-signs the partner's balance proof, stores the delegation and
// submits it to the hub. The delegation names the partner as sender since the
// proof being delegated is theirs. The stored proof survives a failed
// submission; the retry loop picks it up. Signing failures abort before
// anything is written.
func (s *Service) Submit(ctx context.Context, paymentID string, partnerProof *payment.BalanceProof) (payment.NonClosingProof, error) {
	if partnerProof == nil {
		return payment.NonClosingProof{}, errors.New("watchtower: missing partner balance proof")
	}

	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return payment.NonClosingProof{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return payment.NonClosingProof{}, err
	}
	sender, err := protocol.ChecksumAddress(p.Partner)
	if err != nil {
		return payment.NonClosingProof{}, fmt.Errorf("partner address: %w", err)
	}

	tokenNetworkAddress, err := protocol.ChecksumAddress(p.TokenNetworkAddress)
	if err != nil {
		return payment.NonClosingProof{}, fmt.Errorf("token network address: %w", err)
	}

	preimage, err := protocol.PackNonClosingBalanceProof(partnerProof)
	if err != nil {
		return payment.NonClosingProof{}, err
	}
	sig, err := s.signer.Sign(ctx, preimage)
	if err != nil {
		metrics.WatchtowerSubmission("sign_error")
		return payment.NonClosingProof{}, fmt.Errorf("sign non-closing balance proof: %w", err)
	}

	partnerCopy := *partnerProof
	proof := payment.NonClosingProof{
		Sender:               sender,
		LightClientPaymentID: p.PaymentID,
		SecretHash:           p.SecretHash,
		Nonce:                partnerProof.Nonce.Copy(),
		ChannelID:            p.ChannelID.Copy(),
		TokenNetworkAddress:  tokenNetworkAddress,
		LcBpSignature:        "0x" + hex.EncodeToString(sig),
		PartnerBalanceProof:  &partnerCopy,
	}

	// The delegation replaces any prior one for the channel only once the
	// hub has accepted it. A failed submission stays queued with nothing
	// stored, as if it never happened.
	if err := s.hub.Put(ctx, watchtowerPath, proof, nil); err != nil {
		metrics.WatchtowerSubmission("transport_error")
		s.log.WithError(err).Warnf("watchtower submission for payment %s failed; queued for retry", p.PaymentID)
		s.queueRetry(p.Token, proof)
		return proof, nil
	}
	metrics.WatchtowerSubmission("ok")

	if err := s.proofs.PutProof(ctx, p.Token, proof); err != nil {
		return payment.NonClosingProof{}, err
	}
	if err := s.persist.Persist(ctx); err != nil {
		return payment.NonClosingProof{}, fmt.Errorf("persist after delegation: %w", err)
	}
	return proof, nil
}

// Proof returns the stored delegation for a channel and token.
func (s *Service) Proof(ctx context.Context, channelID, token string) (payment.NonClosingProof, error) {
	return s.proofs.GetProof(ctx, channelID, token)
}

func (s *Service) queueRetry(token string, proof payment.NonClosingProof) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry[retryKey(token, proof)] = retryItem{token: token, proof: proof}
}

func retryKey(token string, proof payment.NonClosingProof) string {
	id := "?"
	if proof.ChannelID != nil {
		id = proof.ChannelID.String()
	}
	return id + "|" + token
}
