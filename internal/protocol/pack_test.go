package protocol

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

const (
	addrA = "0x3111b2dDe75A29FDeD5D817C9CB5075cD3a28fa7"
	addrB = "0x29021129F5d038897f01bD4BC050525Ca01a4758"
	hash0 = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

func TestGenerateSecret(t *testing.T) {
	secret, secretHash, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, err := HexToBytes(secret)
	if err != nil || len(raw) != 32 {
		t.Fatalf("secret not 32 hex bytes: %q err=%v", secret, err)
	}
	if secretHash != "0x"+hex.EncodeToString(Keccak256(raw)) {
		t.Fatalf("secrethash is not keccak of secret")
	}

	again, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if again == secret {
		t.Fatal("secrets must be random")
	}
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress(strings.ToLower(addrA))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if !AddressesEqual(got, addrA) {
		t.Fatalf("checksum changed the address: %s", got)
	}

	// Checksumming is deterministic and idempotent regardless of input case.
	fromUpper, err := ChecksumAddress("0x" + strings.ToUpper(strings.TrimPrefix(addrA, "0x")))
	if err != nil {
		t.Fatalf("checksum upper: %v", err)
	}
	if fromUpper != got {
		t.Fatalf("case-dependent checksum: %s vs %s", fromUpper, got)
	}
	again, err := ChecksumAddress(got)
	if err != nil {
		t.Fatalf("checksum again: %v", err)
	}
	if again != got {
		t.Fatalf("not idempotent: %s vs %s", again, got)
	}

	if _, err := ChecksumAddress("0x1234"); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestPackRevealSecretLayout(t *testing.T) {
	secret := "0x" + strings.Repeat("ab", 32)
	m := &payment.RevealSecret{
		Type:              payment.TypeRevealSecret,
		MessageIdentifier: jsonbig.NewInt(1337),
		Secret:            secret,
	}

	packed, err := PackRevealSecret(m)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(packed) != 4+8+32 {
		t.Fatalf("unexpected length %d", len(packed))
	}
	if packed[0] != cmdRevealSecret {
		t.Fatalf("command byte %d", packed[0])
	}
	secretRaw, _ := HexToBytes(secret)
	if !bytes.Equal(packed[12:], secretRaw) {
		t.Fatal("secret bytes misplaced")
	}
}

func TestPackDeterministic(t *testing.T) {
	m := &payment.SecretRequest{
		Type:              payment.TypeSecretRequest,
		MessageIdentifier: jsonbig.NewInt(9),
		PaymentIdentifier: jsonbig.NewInt(42),
		Amount:            jsonbig.NewInt(50),
		Expiration:        jsonbig.NewInt(100000),
		SecretHash:        hash0,
	}

	first, err := Pack(m)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	second, err := Pack(m)
	if err != nil {
		t.Fatalf("pack again: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("packing must be deterministic")
	}
}

func TestPackLockedTransfer(t *testing.T) {
	m := lockedTransferFixture()
	packed, err := Pack(m)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	// 4 command + 8 nonce + 32 chain + 8 msg + 8 payment + 32 expiration +
	// 3*20 addresses before channel id... fixed total layout.
	want := 4 + 8 + 32 + 8 + 8 + 32 + 20 + 20 + 32 + 20 + 20 + 20 + 32 + 32 + 32 + 32 + 32
	if len(packed) != want {
		t.Fatalf("length %d, want %d", len(packed), want)
	}
	if packed[0] != cmdLockedTransfer {
		t.Fatalf("command byte %d", packed[0])
	}
}

func TestPackRejectsOversizedField(t *testing.T) {
	big, err := ParseHelper("18446744073709551616") // 2^64, overflows 8 bytes
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := &payment.Processed{Type: payment.TypeProcessed, MessageIdentifier: big}
	if _, err := Pack(m); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestPackNonClosingBalanceProof(t *testing.T) {
	bp := balanceProofFixture()
	packed, err := PackNonClosingBalanceProof(bp)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	inner, err := PackBalanceProof(bp)
	if err != nil {
		t.Fatalf("pack inner: %v", err)
	}
	digest := Keccak256(inner)
	if !bytes.Contains(packed, digest) {
		t.Fatal("delegation preimage must embed the balance proof hash")
	}

	unsigned := *bp
	unsigned.Signature = ""
	if _, err := PackNonClosingBalanceProof(&unsigned); err == nil {
		t.Fatal("expected error without partner signature")
	}
}

// ParseHelper exposes jsonbig parsing with a protocol-local name to keep test
// fixtures terse.
func ParseHelper(s string) (*jsonbig.Int, error) { return jsonbig.ParseInt(s) }

func lockedTransferFixture() *payment.LockedTransfer {
	return &payment.LockedTransfer{
		Type:                payment.TypeLockedTransfer,
		ChainID:             jsonbig.NewInt(33),
		MessageIdentifier:   jsonbig.NewInt(123456),
		PaymentIdentifier:   jsonbig.NewInt(42),
		Nonce:               jsonbig.NewInt(1),
		TokenNetworkAddress: addrA,
		Token:               addrB,
		ChannelIdentifier:   jsonbig.NewInt(7),
		TransferredAmount:   jsonbig.NewInt(0),
		LockedAmount:        jsonbig.NewInt(50),
		Recipient:           addrB,
		Locksroot:           hash0,
		Lock: payment.Lock{
			Type:       payment.TypeLock,
			Amount:     jsonbig.NewInt(50),
			Expiration: jsonbig.NewInt(195730),
			SecretHash: hash0,
		},
		Target:    addrB,
		Initiator: addrA,
	}
}

func balanceProofFixture() *payment.BalanceProof {
	return &payment.BalanceProof{
		Type:                payment.TypeSecret,
		ChainID:             jsonbig.NewInt(33),
		MessageIdentifier:   jsonbig.NewInt(99),
		PaymentIdentifier:   jsonbig.NewInt(42),
		Secret:              "0x" + strings.Repeat("cd", 32),
		Nonce:               jsonbig.NewInt(2),
		TokenNetworkAddress: addrA,
		ChannelIdentifier:   jsonbig.NewInt(7),
		TransferredAmount:   jsonbig.NewInt(50),
		LockedAmount:        jsonbig.NewInt(0),
		Locksroot:           hash0,
		Signature:           "0x" + strings.Repeat("11", 65),
	}
}
