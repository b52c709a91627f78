package payment

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/lumino-network/light-client/internal/jsonbig"
)

// Protocol message type tags as they appear on the wire.
const (
	TypeLockedTransfer = "LockedTransfer"
	TypeProcessed      = "Processed"
	TypeDelivered      = "Delivered"
	TypeSecretRequest  = "SecretRequest"
	TypeRevealSecret   = "RevealSecret"
	TypeSecret         = "Secret"
	TypeLock           = "Lock"
)

// Message order numbers are shared with the hub and partner light clients and
// must never be renumbered. The gaps (2, 6, 8-10) belong to partner-originated
// acknowledgements this client does not produce.
const (
	OrderLockedTransfer = 1
	OrderProcessed      = 3
	OrderDelivered      = 4
	OrderSecretRequest  = 5
	OrderRevealSecret   = 7
	OrderBalanceProof   = 11
)

// NextOrder returns the order number of the step that follows cur in the
// client-originated sequence, and whether cur has a successor.
func NextOrder(cur int) (int, bool) {
	switch cur {
	case OrderLockedTransfer:
		return OrderProcessed, true
	case OrderProcessed:
		return OrderDelivered, true
	case OrderDelivered:
		return OrderSecretRequest, true
	case OrderSecretRequest:
		return OrderRevealSecret, true
	case OrderRevealSecret:
		return OrderBalanceProof, true
	default:
		return 0, false
	}
}

// Body is one typed protocol message payload. Exactly the structs below
// implement it; the compiler rejects an unhandled variant wherever code
// switches over the concrete types.
type Body interface {
	Order() int
	SetSignature(sig string)
}

// Lock encumbers the transferred value behind a hashed secret until
// expiration.
type Lock struct {
	Type       string       `json:"type"`
	Amount     *jsonbig.Int `json:"amount"`
	Expiration *jsonbig.Int `json:"expiration"`
	SecretHash string       `json:"secrethash"`
}

// LockedTransfer is the first message of a payment. The hub assigns the
// identifiers and channel-binding fields; the client attaches the secrethash
// and signs.
type LockedTransfer struct {
	Type                string       `json:"type"`
	ChainID             *jsonbig.Int `json:"chain_id"`
	MessageIdentifier   *jsonbig.Int `json:"message_identifier"`
	PaymentIdentifier   *jsonbig.Int `json:"payment_identifier"`
	Nonce               *jsonbig.Int `json:"nonce"`
	TokenNetworkAddress string       `json:"token_network_address"`
	Token               string       `json:"token"`
	ChannelIdentifier   *jsonbig.Int `json:"channel_identifier"`
	TransferredAmount   *jsonbig.Int `json:"transferred_amount"`
	LockedAmount        *jsonbig.Int `json:"locked_amount"`
	Recipient           string       `json:"recipient"`
	Locksroot           string       `json:"locksroot"`
	Lock                Lock         `json:"lock"`
	Target              string       `json:"target"`
	Initiator           string       `json:"initiator"`
	Signature           string       `json:"signature,omitempty"`
}

func (m *LockedTransfer) Order() int            { return OrderLockedTransfer }
func (m *LockedTransfer) SetSignature(s string) { m.Signature = s }

// Processed acknowledges a received message by its identifier.
type Processed struct {
	Type              string       `json:"type"`
	MessageIdentifier *jsonbig.Int `json:"message_identifier"`
	Signature         string       `json:"signature,omitempty"`
}

func (m *Processed) Order() int            { return OrderProcessed }
func (m *Processed) SetSignature(s string) { m.Signature = s }

// Delivered confirms transport-level receipt of a message.
type Delivered struct {
	Type                       string       `json:"type"`
	DeliveredMessageIdentifier *jsonbig.Int `json:"delivered_message_identifier"`
	Signature                  string       `json:"signature,omitempty"`
}

func (m *Delivered) Order() int            { return OrderDelivered }
func (m *Delivered) SetSignature(s string) { m.Signature = s }

// SecretRequest asks the initiator to reveal the secret for a locked transfer.
type SecretRequest struct {
	Type              string       `json:"type"`
	MessageIdentifier *jsonbig.Int `json:"message_identifier"`
	PaymentIdentifier *jsonbig.Int `json:"payment_identifier"`
	Amount            *jsonbig.Int `json:"amount"`
	Expiration        *jsonbig.Int `json:"expiration"`
	SecretHash        string       `json:"secrethash"`
	Signature         string       `json:"signature,omitempty"`
}

func (m *SecretRequest) Order() int            { return OrderSecretRequest }
func (m *SecretRequest) SetSignature(s string) { m.Signature = s }

// RevealSecret discloses the lock preimage, authorising the receiver to claim
// the locked value.
type RevealSecret struct {
	Type              string       `json:"type"`
	MessageIdentifier *jsonbig.Int `json:"message_identifier"`
	Secret            string       `json:"secret"`
	Signature         string       `json:"signature,omitempty"`
}

func (m *RevealSecret) Order() int            { return OrderRevealSecret }
func (m *RevealSecret) SetSignature(s string) { m.Signature = s }

// BalanceProof is the Secret message carrying the channel's updated off-chain
// balance statement. The client re-signs the partner-authored fields before
// sending its own copy.
type BalanceProof struct {
	Type                string       `json:"type"`
	ChainID             *jsonbig.Int `json:"chain_id"`
	MessageIdentifier   *jsonbig.Int `json:"message_identifier"`
	PaymentIdentifier   *jsonbig.Int `json:"payment_identifier"`
	Secret              string       `json:"secret"`
	Nonce               *jsonbig.Int `json:"nonce"`
	TokenNetworkAddress string       `json:"token_network_address"`
	ChannelIdentifier   *jsonbig.Int `json:"channel_identifier"`
	TransferredAmount   *jsonbig.Int `json:"transferred_amount"`
	LockedAmount        *jsonbig.Int `json:"locked_amount"`
	Locksroot           string       `json:"locksroot"`
	Signature           string       `json:"signature,omitempty"`
}

func (m *BalanceProof) Order() int            { return OrderBalanceProof }
func (m *BalanceProof) SetSignature(s string) { m.Signature = s }

// Envelope is the unit exchanged with the hub: a typed, signed message plus
// routing metadata.
type Envelope struct {
	MessageID    string `json:"message_id"`
	MessageOrder int    `json:"message_order"`
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	Message      Body   `json:"message"`
}

// envelopeShadow mirrors Envelope with the message left raw so the concrete
// payload type can be picked by its wire tag.
type envelopeShadow struct {
	MessageID    string          `json:"message_id"`
	MessageOrder int             `json:"message_order"`
	Sender       string          `json:"sender"`
	Receiver     string          `json:"receiver"`
	Message      json.RawMessage `json:"message"`
}

// UnmarshalJSON decodes the envelope, dispatching the message payload on its
// "type" tag.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var shadow envelopeShadow
	if err := jsonbig.Unmarshal(data, &shadow); err != nil {
		return err
	}
	e.MessageID = shadow.MessageID
	e.MessageOrder = shadow.MessageOrder
	e.Sender = shadow.Sender
	e.Receiver = shadow.Receiver
	e.Message = nil
	if len(shadow.Message) == 0 || string(shadow.Message) == "null" {
		return nil
	}

	body, err := DecodeBody(shadow.Message)
	if err != nil {
		return err
	}
	e.Message = body
	return nil
}

// DecodeBody decodes a raw protocol message into its typed representation
// using the wire "type" tag.
func DecodeBody(raw []byte) (Body, error) {
	typeName := gjson.GetBytes(raw, "type").String()

	var body Body
	switch typeName {
	case TypeLockedTransfer:
		body = &LockedTransfer{}
	case TypeProcessed:
		body = &Processed{}
	case TypeDelivered:
		body = &Delivered{}
	case TypeSecretRequest:
		body = &SecretRequest{}
	case TypeRevealSecret:
		body = &RevealSecret{}
	case TypeSecret:
		body = &BalanceProof{}
	default:
		return nil, fmt.Errorf("payment: unknown message type %q", typeName)
	}
	if err := jsonbig.Unmarshal(raw, body); err != nil {
		return nil, err
	}
	return body, nil
}
