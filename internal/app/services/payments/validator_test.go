package payments

import (
	"errors"
	"testing"

	"github.com/lumino-network/light-client/internal/app/domain/channel"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

const testSecretHash = "0x46ba22152fdd9ebc0f1a327622fd16e57cdd64d1e1ba0480cf32667e8291bc88"

func validMessage() payment.LockedTransfer {
	return payment.LockedTransfer{
		Type:              payment.TypeLockedTransfer,
		Token:             tokenAddr,
		ChannelIdentifier: jsonbig.NewInt(7),
		Target:            partnerAddr,
		Initiator:         creatorAddr,
		Lock: payment.Lock{
			Type:       payment.TypeLock,
			Amount:     jsonbig.NewInt(100),
			Expiration: jsonbig.NewInt(195730),
			SecretHash: testSecretHash,
		},
	}
}

func validRequest() createRequest {
	return createRequest{
		CreatorAddress: creatorAddr,
		PartnerAddress: partnerAddr,
		Amount:         jsonbig.NewInt(100),
		TokenAddress:   tokenAddr,
		SecretHash:     testSecretHash,
	}
}

func validChannel() channel.Channel {
	return channel.Channel{
		ChannelID:       jsonbig.NewInt(7),
		Partner:         partnerAddr,
		Token:           tokenAddr,
		OffChainBalance: jsonbig.NewInt(1000),
	}
}

func TestValidateLockedTransferAccepts(t *testing.T) {
	if err := validateLockedTransfer(validMessage(), validRequest(), validChannel()); err != nil {
		t.Fatalf("consistent message rejected: %v", err)
	}
}

func TestValidateLockedTransferCaseInsensitiveAddresses(t *testing.T) {
	msg := validMessage()
	msg.Token = "0x8E45C0936FA1A65BDAD3222BEFEC6F96C28F610D"
	msg.Target = "0x29021129F5D038897F01BD4BC050525CA01A4758"
	if err := validateLockedTransfer(msg, validRequest(), validChannel()); err != nil {
		t.Fatalf("address casing rejected: %v", err)
	}
}

func TestValidateLockedTransferRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(msg *payment.LockedTransfer, req *createRequest, ch *channel.Channel)
	}{
		{"tampered amount", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Lock.Amount = jsonbig.NewInt(101)
		}},
		{"nil amount", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Lock.Amount = nil
		}},
		{"wrong token", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Token = networkAddr
		}},
		{"foreign secrethash", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Lock.SecretHash = emptyRoot
		}},
		{"redirected target", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Target = creatorAddr
		}},
		{"wrong initiator", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.Initiator = partnerAddr
		}},
		{"unknown channel", func(msg *payment.LockedTransfer, _ *createRequest, _ *channel.Channel) {
			msg.ChannelIdentifier = jsonbig.NewInt(8)
		}},
		{"capacity below amount", func(_ *payment.LockedTransfer, _ *createRequest, ch *channel.Channel) {
			ch.OffChainBalance = jsonbig.NewInt(99)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, req, ch := validMessage(), validRequest(), validChannel()
			tc.mutate(&msg, &req, &ch)
			if err := validateLockedTransfer(msg, req, ch); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}
