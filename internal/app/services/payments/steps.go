package payments

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/metrics"
	"github.com/lumino-network/light-client/internal/jsonbig"
	"github.com/lumino-network/light-client/internal/protocol"
)

// SendProcessed signs and submits the Processed acknowledgement for the locked
// transfer, moving the payment to order 3.
func (e *Engine) SendProcessed(ctx context.Context, paymentID string, messageIdentifier *jsonbig.Int) (payment.Payment, error) {
	p, err := e.Payment(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}
	body := &payment.Processed{
		Type:              payment.TypeProcessed,
		MessageIdentifier: messageIdentifier.Copy(),
	}
	return e.sendSigned(ctx, p, body, p.Partner, p.Initiator)
}

// SendDelivered signs and submits the Delivered confirmation for the given
// message identifier. isReception selects the direction: true when confirming
// a partner-originated message, false when confirming one of our own.
func (e *Engine) SendDelivered(ctx context.Context, paymentID string, deliveredMessageIdentifier *jsonbig.Int, isReception bool) (payment.Payment, error) {
	p, err := e.Payment(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}
	body := &payment.Delivered{
		Type:                       payment.TypeDelivered,
		DeliveredMessageIdentifier: deliveredMessageIdentifier.Copy(),
	}
	sender, receiver := p.Partner, p.Initiator
	if !isReception {
		sender, receiver = p.Initiator, p.Partner
	}
	return e.sendSigned(ctx, p, body, sender, receiver)
}

// SendSecretRequest signs and submits the request for the lock preimage.
// Amount and secrethash come from the stored payment; the hub supplies the
// message identifier and lock expiration.
func (e *Engine) SendSecretRequest(ctx context.Context, paymentID string, messageIdentifier, expiration *jsonbig.Int) (payment.Payment, error) {
	p, err := e.Payment(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}
	paymentIdentifier, err := jsonbig.ParseInt(p.PaymentID)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("payment id %q is not numeric: %w", p.PaymentID, err)
	}
	body := &payment.SecretRequest{
		Type:              payment.TypeSecretRequest,
		MessageIdentifier: messageIdentifier.Copy(),
		PaymentIdentifier: paymentIdentifier,
		Amount:            p.Amount.Copy(),
		Expiration:        expiration.Copy(),
		SecretHash:        p.SecretHash,
	}
	return e.sendSigned(ctx, p, body, p.Initiator, p.Partner)
}

// SendRevealSecret discloses the stored secret under a freshly drawn message
// identifier. isReception selects the direction, as in SendDelivered.
func (e *Engine) SendRevealSecret(ctx context.Context, paymentID string, isReception bool) (payment.Payment, error) {
	p, err := e.Payment(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}
	messageIdentifier, err := randomMessageIdentifier()
	if err != nil {
		return payment.Payment{}, err
	}
	body := &payment.RevealSecret{
		Type:              payment.TypeRevealSecret,
		MessageIdentifier: messageIdentifier,
		Secret:            p.Secret,
	}
	sender, receiver := p.Initiator, p.Partner
	if isReception {
		sender, receiver = p.Partner, p.Initiator
	}
	return e.sendSigned(ctx, p, body, sender, receiver)
}

// SendBalanceProof counter-signs the partner's balance proof and submits it,
// completing the payment. The partner's own signature is discarded before
// signing so the transmitted message carries only this client's.
func (e *Engine) SendBalanceProof(ctx context.Context, paymentID string, partnerMessage *payment.BalanceProof) (payment.Payment, error) {
	p, err := e.Payment(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}
	if partnerMessage == nil {
		return payment.Payment{}, fmt.Errorf("%w: missing balance proof message", ErrValidation)
	}
	body := *partnerMessage
	body.Type = payment.TypeSecret
	body.Signature = ""
	return e.sendSigned(ctx, p, &body, p.Initiator, p.Partner)
}

// sendSigned runs the shared step pipeline: ordering guard, pack, sign,
// pending record, local state update, transmission and snapshot. Signing
// failures abort before any state is written. Transmission failures after the
// pending record are logged and swallowed so recovery can retry from the
// tracker.
func (e *Engine) sendSigned(ctx context.Context, p payment.Payment, body payment.Body, sender, receiver string) (payment.Payment, error) {
	order := body.Order()
	next, ok := payment.NextOrder(p.MessageOrder)
	if !ok || order != next {
		return payment.Payment{}, fmt.Errorf("%w: payment %s is at order %d, got order %d",
			ErrOutOfOrder, p.PaymentID, p.MessageOrder, order)
	}
	typ := typeLabel(body)

	preimage, err := protocol.Pack(body)
	if err != nil {
		return payment.Payment{}, err
	}
	sig, err := e.signer.Sign(ctx, preimage)
	if err != nil {
		metrics.MessageSent(typ, "sign_error")
		return payment.Payment{}, fmt.Errorf("sign %s for payment %s: %w", typ, p.PaymentID, err)
	}
	body.SetSignature("0x" + hex.EncodeToString(sig))

	senderChecksummed, err := protocol.ChecksumAddress(sender)
	if err != nil {
		return payment.Payment{}, err
	}
	receiverChecksummed, err := protocol.ChecksumAddress(receiver)
	if err != nil {
		return payment.Payment{}, err
	}
	env := payment.Envelope{
		MessageID:    p.PaymentID,
		MessageOrder: order,
		Sender:       senderChecksummed,
		Receiver:     receiverChecksummed,
		Message:      body,
	}

	if err := e.pending.AppendPending(ctx, payment.PendingMessage{
		PaymentID:    p.PaymentID,
		MessageOrder: order,
		Envelope:     env,
	}); err != nil {
		return payment.Payment{}, err
	}

	if p.Messages == nil {
		p.Messages = make(map[int]payment.Envelope)
	}
	p.Messages[order] = env
	p.MessageOrder = order
	if state, ok := payment.StateForOrder(order); ok {
		p.State = state
	}
	if err := e.payments.PutPayment(ctx, p); err != nil {
		return payment.Payment{}, err
	}

	if err := e.hub.Put(ctx, putPaymentPath, env, nil); err != nil {
		metrics.MessageSent(typ, "transport_error")
		e.log.WithError(err).Warnf("send %s for payment %s failed; kept in pending tracker", typ, p.PaymentID)
	} else {
		metrics.MessageSent(typ, "ok")
	}

	if err := e.persist.Persist(ctx); err != nil {
		return payment.Payment{}, fmt.Errorf("persist after %s: %w", typ, err)
	}
	return p, nil
}

func typeLabel(body payment.Body) string {
	switch body.(type) {
	case *payment.LockedTransfer:
		return payment.TypeLockedTransfer
	case *payment.Processed:
		return payment.TypeProcessed
	case *payment.Delivered:
		return payment.TypeDelivered
	case *payment.SecretRequest:
		return payment.TypeSecretRequest
	case *payment.RevealSecret:
		return payment.TypeRevealSecret
	case *payment.BalanceProof:
		return payment.TypeSecret
	default:
		return "unknown"
	}
}
