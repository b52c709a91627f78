// Package payments implements the payment protocol engine: it owns the
// payment lifecycle, drives every message through the build-pack-sign-send
// pipeline and records produced envelopes for crash recovery.
package payments

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/metrics"
	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/jsonbig"
	"github.com/lumino-network/light-client/internal/protocol"
	"github.com/lumino-network/light-client/internal/signing"
	"github.com/lumino-network/light-client/pkg/logger"
)

const (
	createPaymentPath = "payments_light/create"
	putPaymentPath    = "payments_light"
)

// HubClient is the slice of the hub transport the engine needs.
type HubClient interface {
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
}

// Persister snapshots the full application state after a mutation.
type Persister interface {
	Persist(ctx context.Context) error
}

// Deps are the collaborators of the engine, injected at construction.
type Deps struct {
	Payments    storage.PaymentStore
	Pending     storage.PendingMessageStore
	Channels    storage.ChannelStore
	Tokens      storage.TokenStore
	Credentials storage.CredentialStore
	Hub         HubClient
	Signer      signing.Signer
	Persist     Persister
	Log         *logger.Logger
}

// Engine is the payment state machine.
type Engine struct {
	payments storage.PaymentStore
	pending  storage.PendingMessageStore
	channels storage.ChannelStore
	tokens   storage.TokenStore
	creds    storage.CredentialStore
	hub      HubClient
	signer   signing.Signer
	persist  Persister
	log      *logger.Logger
	leases   leaseTable
}

// New builds an engine. All dependencies except Log and Tokens are required.
func New(deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Engine{
		payments: deps.Payments,
		pending:  deps.Pending,
		channels: deps.Channels,
		tokens:   deps.Tokens,
		creds:    deps.Credentials,
		hub:      deps.Hub,
		signer:   deps.Signer,
		persist:  deps.Persist,
		log:      log,
	}
}

type createRequest struct {
	CreatorAddress string       `json:"creator_address"`
	PartnerAddress string       `json:"partner_address"`
	Amount         *jsonbig.Int `json:"amount"`
	TokenAddress   string       `json:"token_address"`
	SecretHash     string       `json:"secrethash"`
}

type createResponse struct {
	MessageID    *jsonbig.Int           `json:"message_id"`
	MessageOrder int                    `json:"message_order"`
	Message      payment.LockedTransfer `json:"message"`
}

// CreatePayment runs the full creation sequence: balance check, hub creation
// call, secrethash attachment, signing, local validation and submission.
// Creation errors always propagate; nothing later in the protocol does a
// remote write before this method returns successfully.
func (e *Engine) CreatePayment(ctx context.Context, partner, token string, amount *jsonbig.Int) (payment.Payment, error) {
	release := e.leases.acquire(leaseKey(partner, token))
	defer release()

	address, err := e.creds.Address(ctx)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("read client address: %w", err)
	}

	ch, err := e.channels.LatestChannel(ctx, partner, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.PaymentFailed("no_channel")
			return payment.Payment{}, fmt.Errorf("%w: partner %s token %s", ErrNoChannel, partner, token)
		}
		return payment.Payment{}, err
	}

	if ch.OffChainBalance == nil || ch.OffChainBalance.Cmp(&amount.Int) < 0 {
		metrics.PaymentFailed("insufficient_funds")
		e.log.Warnf("payment of %s rejected: channel %s balance %s", amount.String(), intString(ch.ChannelID), intString(ch.OffChainBalance))
		return payment.Payment{}, fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientFunds, intString(ch.OffChainBalance), amount.String())
	}

	secret, secretHash, err := protocol.GenerateSecret()
	if err != nil {
		return payment.Payment{}, err
	}

	req := createRequest{
		CreatorAddress: address,
		PartnerAddress: partner,
		Amount:         amount,
		TokenAddress:   token,
		SecretHash:     secretHash,
	}

	var res createResponse
	if err := e.hub.Post(ctx, createPaymentPath, req, &res); err != nil {
		metrics.PaymentFailed("create_call")
		return payment.Payment{}, fmt.Errorf("create payment on hub: %w", err)
	}
	// The hub response is input like any other; a response without the
	// assigned identifier is unusable.
	if res.MessageID == nil {
		metrics.PaymentFailed("validation")
		return payment.Payment{}, fmt.Errorf("%w: hub creation response carries no message id", ErrValidation)
	}

	lt := res.Message
	lt.Lock.SecretHash = secretHash

	preimage, err := protocol.PackLockedTransfer(&lt)
	if err != nil {
		metrics.PaymentFailed("packing")
		return payment.Payment{}, err
	}
	sig, err := e.signer.Sign(ctx, preimage)
	if err != nil {
		metrics.PaymentFailed("signing")
		return payment.Payment{}, fmt.Errorf("sign locked transfer: %w", err)
	}

	// The hub record already exists at this point; a validation failure
	// leaves it orphaned relative to local state, which is logged and
	// surfaced as unrecoverable for this attempt.
	if err := validateLockedTransfer(res.Message, req, ch); err != nil {
		metrics.PaymentFailed("validation")
		e.log.WithError(err).Errorf("hub message %s inconsistent with request; remote record orphaned", res.MessageID.String())
		return payment.Payment{}, err
	}
	lt.Signature = "0x" + hex.EncodeToString(sig)

	sender, err := protocol.ChecksumAddress(lt.Initiator)
	if err != nil {
		return payment.Payment{}, err
	}
	receiver, err := protocol.ChecksumAddress(lt.Target)
	if err != nil {
		return payment.Payment{}, err
	}

	order := res.MessageOrder
	if order == 0 {
		order = payment.OrderLockedTransfer
	}
	env := payment.Envelope{
		MessageID:    res.MessageID.String(),
		MessageOrder: order,
		Sender:       sender,
		Receiver:     receiver,
		Message:      &lt,
	}
	if err := e.hub.Put(ctx, putPaymentPath, env, nil); err != nil {
		metrics.PaymentFailed("put_call")
		return payment.Payment{}, fmt.Errorf("submit locked transfer: %w", err)
	}

	p := payment.Payment{
		PaymentID:           env.MessageID,
		Initiator:           lt.Initiator,
		Partner:             lt.Target,
		Token:               token,
		TokenNetworkAddress: lt.TokenNetworkAddress,
		ChainID:             lt.ChainID.Copy(),
		ChannelID:           lt.ChannelIdentifier.Copy(),
		Amount:              lt.Lock.Amount.Copy(),
		Secret:              secret,
		SecretHash:          secretHash,
		State:               payment.StateCreated,
		MessageOrder:        payment.OrderLockedTransfer,
		Messages:            map[int]payment.Envelope{payment.OrderLockedTransfer: env},
		CreatedAt:           time.Now().UTC(),
	}
	if tok, err := e.tokens.GetToken(ctx, token); err == nil {
		p.TokenName = tok.Name
		p.TokenSymbol = tok.Symbol
	}

	if err := e.payments.PutPayment(ctx, p); err != nil {
		return payment.Payment{}, err
	}
	metrics.PaymentCreated()
	e.log.Infof("payment %s created on channel %s for %s", p.PaymentID, intString(p.ChannelID), p.Amount.String())

	if err := e.persist.Persist(ctx); err != nil {
		return payment.Payment{}, fmt.Errorf("persist after creation: %w", err)
	}
	return p, nil
}

// ClearAllPending wipes the pending message tracker and persists. Completed
// payments are untouched.
func (e *Engine) ClearAllPending(ctx context.Context) error {
	if err := e.pending.ClearPending(ctx); err != nil {
		return err
	}
	return e.persist.Persist(ctx)
}

// PendingMessages lists every recorded pending envelope, for recovery and
// auditing.
func (e *Engine) PendingMessages(ctx context.Context) ([]payment.PendingMessage, error) {
	return e.pending.ListPending(ctx)
}

// Payment returns a stored payment by id.
func (e *Engine) Payment(ctx context.Context, paymentID string) (payment.Payment, error) {
	p, err := e.payments.GetPayment(ctx, paymentID)
	if errors.Is(err, storage.ErrNotFound) {
		return payment.Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	return p, err
}

// Payments lists all stored payments.
func (e *Engine) Payments(ctx context.Context) ([]payment.Payment, error) {
	return e.payments.ListPayments(ctx)
}

// randomMessageIdentifier draws a fresh positive 63-bit identifier for
// messages the client originates without a hub-assigned id.
func randomMessageIdentifier() (*jsonbig.Int, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("draw message identifier: %w", err)
	}
	id := jsonbig.NewInt(0)
	id.Int.SetUint64(binary.BigEndian.Uint64(buf[:]) >> 1)
	return id, nil
}
