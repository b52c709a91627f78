package payments

import (
	"fmt"
	"strings"

	"github.com/lumino-network/light-client/internal/app/domain/channel"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/jsonbig"
	"github.com/lumino-network/light-client/internal/protocol"
)

// validateLockedTransfer checks that the hub's locked transfer is consistent
// with the request that produced it and with the channel snapshot. The hub
// assigns identifiers and timing the client cannot predict, but every
// value-bearing field must match what was requested.
func validateLockedTransfer(msg payment.LockedTransfer, req createRequest, ch channel.Channel) error {
	if msg.Lock.Amount == nil || !msg.Lock.Amount.Equal(req.Amount) {
		return fmt.Errorf("%w: lock amount %s does not match requested %s",
			ErrValidation, intString(msg.Lock.Amount), intString(req.Amount))
	}
	if !protocol.AddressesEqual(msg.Token, req.TokenAddress) {
		return fmt.Errorf("%w: token %s does not match requested %s", ErrValidation, msg.Token, req.TokenAddress)
	}
	if !hashesEqual(msg.Lock.SecretHash, req.SecretHash) {
		return fmt.Errorf("%w: lock secrethash mismatch", ErrValidation)
	}
	if !protocol.AddressesEqual(msg.Target, req.PartnerAddress) {
		return fmt.Errorf("%w: target %s is not the requested partner", ErrValidation, msg.Target)
	}
	if !protocol.AddressesEqual(msg.Initiator, req.CreatorAddress) {
		return fmt.Errorf("%w: initiator %s is not this client", ErrValidation, msg.Initiator)
	}
	if ch.ChannelID == nil || msg.ChannelIdentifier == nil || !msg.ChannelIdentifier.Equal(ch.ChannelID) {
		return fmt.Errorf("%w: channel %s not known for this partner and token",
			ErrValidation, intString(msg.ChannelIdentifier))
	}
	if ch.OffChainBalance == nil || ch.OffChainBalance.Cmp(&req.Amount.Int) < 0 {
		return fmt.Errorf("%w: channel capacity below requested amount", ErrValidation)
	}
	return nil
}

func hashesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}

func intString(v *jsonbig.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
