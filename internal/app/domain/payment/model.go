// Package payment holds the payment entity, its protocol messages and the
// lifecycle states of a transfer through a payment channel.
package payment

import (
	"time"

	"github.com/lumino-network/light-client/internal/jsonbig"
)

// State is the lifecycle position of a payment.
type State string

const (
	StateRequested        State = "requested"
	StateCreated          State = "created"
	StateProcessed        State = "processed"
	StateDelivered        State = "delivered"
	StateSecretRequested  State = "secret_requested"
	StateSecretRevealed   State = "secret_revealed"
	StateBalanceProofSent State = "balance_proof_sent"
	StateErrored          State = "errored"
)

// StateForOrder maps a successfully sent message order to the state the
// payment enters.
func StateForOrder(order int) (State, bool) {
	switch order {
	case OrderLockedTransfer:
		return StateCreated, true
	case OrderProcessed:
		return StateProcessed, true
	case OrderDelivered:
		return StateDelivered, true
	case OrderSecretRequest:
		return StateSecretRequested, true
	case OrderRevealSecret:
		return StateSecretRevealed, true
	case OrderBalanceProof:
		return StateBalanceProofSent, true
	default:
		return "", false
	}
}

// Payment is the central entity, created once per transfer attempt. PaymentID
// is assigned by the hub at creation and is the sole key afterwards. Messages
// is append-only, keyed by message order.
type Payment struct {
	PaymentID           string           `json:"payment_id"`
	Initiator           string           `json:"initiator"`
	Partner             string           `json:"partner"`
	Token               string           `json:"token"`
	TokenName           string           `json:"token_name"`
	TokenSymbol         string           `json:"token_symbol"`
	TokenNetworkAddress string           `json:"token_network_address"`
	ChainID             *jsonbig.Int     `json:"chain_id"`
	ChannelID           *jsonbig.Int     `json:"channel_id"`
	Amount              *jsonbig.Int     `json:"amount"`
	Secret              string           `json:"secret"`
	SecretHash          string           `json:"secret_hash"`
	State               State            `json:"state"`
	MessageOrder        int              `json:"message_order"`
	Messages            map[int]Envelope `json:"messages"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Clone returns a copy whose Messages map is independent of the original.
func (p Payment) Clone() Payment {
	out := p
	out.ChainID = p.ChainID.Copy()
	out.ChannelID = p.ChannelID.Copy()
	out.Amount = p.Amount.Copy()
	if p.Messages != nil {
		out.Messages = make(map[int]Envelope, len(p.Messages))
		for order, env := range p.Messages {
			out.Messages[order] = env
		}
	}
	return out
}

// PendingMessage records a produced envelope for crash recovery, independent
// of whether the transmission that followed succeeded.
type PendingMessage struct {
	PaymentID    string   `json:"payment_id"`
	MessageOrder int      `json:"message_order"`
	Envelope     Envelope `json:"envelope"`
}

// NonClosingProof is the watchtower delegation artifact: the partner's latest
// balance proof counter-signed by this client so a third party can submit it
// on-chain if the partner attempts a stale close.
type NonClosingProof struct {
	Sender               string        `json:"sender"`
	LightClientPaymentID string        `json:"light_client_payment_id"`
	SecretHash           string        `json:"secret_hash"`
	Nonce                *jsonbig.Int  `json:"nonce"`
	ChannelID            *jsonbig.Int  `json:"channel_id"`
	TokenNetworkAddress  string        `json:"token_network_address"`
	LcBpSignature        string        `json:"lc_bp_signature"`
	PartnerBalanceProof  *BalanceProof `json:"partner_balance_proof"`
}
