package protocol

import (
	"bytes"
	"fmt"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

// Wire command identifiers. Fixed protocol constants, shared with the hub.
const (
	cmdProcessed      = 0
	cmdSecretRequest  = 3
	cmdSecret         = 4
	cmdLockedTransfer = 7
	cmdRevealSecret   = 11
	cmdDelivered      = 12
)

const addressLength = 20

type packer struct {
	buf bytes.Buffer
	err error
}

func (p *packer) command(id byte) {
	// One command byte followed by three bytes of padding.
	p.buf.Write([]byte{id, 0, 0, 0})
}

// number writes a big integer left-padded big-endian into width bytes. A nil
// value packs as zero.
func (p *packer) number(v *jsonbig.Int, width int, field string) {
	if p.err != nil {
		return
	}
	raw := []byte{}
	if v != nil {
		if v.Sign() < 0 {
			p.err = fmt.Errorf("protocol: negative value in field %s", field)
			return
		}
		raw = v.Bytes()
	}
	if len(raw) > width {
		p.err = fmt.Errorf("protocol: field %s overflows %d bytes", field, width)
		return
	}
	p.buf.Write(make([]byte, width-len(raw)))
	p.buf.Write(raw)
}

// hexBytes writes a hex-encoded field of exactly width bytes.
func (p *packer) hexBytes(s string, width int, field string) {
	if p.err != nil {
		return
	}
	raw, err := HexToBytes(s)
	if err != nil {
		p.err = fmt.Errorf("protocol: field %s: %w", field, err)
		return
	}
	if len(raw) != width {
		p.err = fmt.Errorf("protocol: field %s is %d bytes, want %d", field, len(raw), width)
		return
	}
	p.buf.Write(raw)
}

func (p *packer) address(s string, field string) {
	p.hexBytes(s, addressLength, field)
}

func (p *packer) result() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.buf.Bytes(), nil
}

// Pack returns the exact signing preimage for a protocol message. The switch
// is exhaustive over the message variants; adding a new Body implementation
// without a case here fails every signing path at once.
func Pack(body payment.Body) ([]byte, error) {
	switch m := body.(type) {
	case *payment.LockedTransfer:
		return PackLockedTransfer(m)
	case *payment.Processed:
		return PackProcessed(m)
	case *payment.Delivered:
		return PackDelivered(m)
	case *payment.SecretRequest:
		return PackSecretRequest(m)
	case *payment.RevealSecret:
		return PackRevealSecret(m)
	case *payment.BalanceProof:
		return PackBalanceProof(m)
	default:
		return nil, fmt.Errorf("protocol: no canonical packing for %T", body)
	}
}

// PackLockedTransfer packs the initial transfer message including its lock.
func PackLockedTransfer(m *payment.LockedTransfer) ([]byte, error) {
	p := &packer{}
	p.command(cmdLockedTransfer)
	p.number(m.Nonce, 8, "nonce")
	p.number(m.ChainID, 32, "chain_id")
	p.number(m.MessageIdentifier, 8, "message_identifier")
	p.number(m.PaymentIdentifier, 8, "payment_identifier")
	p.number(m.Lock.Expiration, 32, "lock.expiration")
	p.address(m.TokenNetworkAddress, "token_network_address")
	p.address(m.Token, "token")
	p.number(m.ChannelIdentifier, 32, "channel_identifier")
	p.address(m.Recipient, "recipient")
	p.address(m.Target, "target")
	p.address(m.Initiator, "initiator")
	p.hexBytes(m.Locksroot, 32, "locksroot")
	p.hexBytes(m.Lock.SecretHash, 32, "lock.secrethash")
	p.number(m.TransferredAmount, 32, "transferred_amount")
	p.number(m.LockedAmount, 32, "locked_amount")
	p.number(m.Lock.Amount, 32, "lock.amount")
	return p.result()
}

// PackProcessed packs a processed acknowledgement.
func PackProcessed(m *payment.Processed) ([]byte, error) {
	p := &packer{}
	p.command(cmdProcessed)
	p.number(m.MessageIdentifier, 8, "message_identifier")
	return p.result()
}

// PackDelivered packs a delivered acknowledgement.
func PackDelivered(m *payment.Delivered) ([]byte, error) {
	p := &packer{}
	p.command(cmdDelivered)
	p.number(m.DeliveredMessageIdentifier, 8, "delivered_message_identifier")
	return p.result()
}

// PackSecretRequest packs a secret request.
func PackSecretRequest(m *payment.SecretRequest) ([]byte, error) {
	p := &packer{}
	p.command(cmdSecretRequest)
	p.number(m.MessageIdentifier, 8, "message_identifier")
	p.number(m.PaymentIdentifier, 8, "payment_identifier")
	p.hexBytes(m.SecretHash, 32, "secrethash")
	p.number(m.Amount, 32, "amount")
	p.number(m.Expiration, 32, "expiration")
	return p.result()
}

// PackRevealSecret packs a secret reveal.
func PackRevealSecret(m *payment.RevealSecret) ([]byte, error) {
	p := &packer{}
	p.command(cmdRevealSecret)
	p.number(m.MessageIdentifier, 8, "message_identifier")
	p.hexBytes(m.Secret, 32, "secret")
	return p.result()
}

// PackBalanceProof packs the Secret message carrying the balance proof.
func PackBalanceProof(m *payment.BalanceProof) ([]byte, error) {
	p := &packer{}
	p.command(cmdSecret)
	p.number(m.ChainID, 32, "chain_id")
	p.number(m.MessageIdentifier, 8, "message_identifier")
	p.number(m.PaymentIdentifier, 8, "payment_identifier")
	p.address(m.TokenNetworkAddress, "token_network_address")
	p.hexBytes(m.Secret, 32, "secret")
	p.number(m.Nonce, 8, "nonce")
	p.number(m.ChannelIdentifier, 32, "channel_identifier")
	p.number(m.TransferredAmount, 32, "transferred_amount")
	p.number(m.LockedAmount, 32, "locked_amount")
	p.hexBytes(m.Locksroot, 32, "locksroot")
	return p.result()
}

// PackNonClosingBalanceProof packs the watchtower delegation preimage: the
// channel coordinates, the keccak hash of the partner's packed balance proof
// and the partner's own signature over it.
func PackNonClosingBalanceProof(m *payment.BalanceProof) ([]byte, error) {
	inner, err := PackBalanceProof(m)
	if err != nil {
		return nil, err
	}
	if m.Signature == "" {
		return nil, fmt.Errorf("protocol: balance proof carries no partner signature")
	}
	partnerSig, err := HexToBytes(m.Signature)
	if err != nil {
		return nil, fmt.Errorf("protocol: partner signature: %w", err)
	}

	p := &packer{}
	p.address(m.TokenNetworkAddress, "token_network_address")
	p.number(m.ChainID, 32, "chain_id")
	p.number(m.ChannelIdentifier, 32, "channel_identifier")
	if p.err == nil {
		p.buf.Write(Keccak256(inner))
		p.buf.Write(partnerSig)
	}
	p.number(m.Nonce, 8, "nonce")
	return p.result()
}
