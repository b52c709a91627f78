// Package channel holds the read models for payment channels and their
// tokens. The engine only reads these; channel funding and settlement flows
// are owned by the host application.
package channel

import (
	"github.com/lumino-network/light-client/internal/jsonbig"
)

// Channel is the off-chain view of one bilateral channel for one token.
type Channel struct {
	ChannelID           *jsonbig.Int `json:"channel_id"`
	Partner             string       `json:"partner"`
	Token               string       `json:"token"`
	TokenNetworkAddress string       `json:"token_network_address"`
	ChainID             *jsonbig.Int `json:"chain_id"`
	OffChainBalance     *jsonbig.Int `json:"off_chain_balance"`
	State               string       `json:"state"`
}

// Clone returns an independent copy.
func (c Channel) Clone() Channel {
	out := c
	out.ChannelID = c.ChannelID.Copy()
	out.ChainID = c.ChainID.Copy()
	out.OffChainBalance = c.OffChainBalance.Copy()
	return out
}

// Token is the metadata of a channel token.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}
