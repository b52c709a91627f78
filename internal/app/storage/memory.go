package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lumino-network/light-client/internal/app/domain/channel"
	"github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
)

// Memory is a thread-safe in-memory implementation of every store interface
// in this package. It is the default backing for the engine; durability comes
// from the snapshot Hook writing the exported state elsewhere.
type Memory struct {
	mu        sync.RWMutex
	address   string
	apiKey    string
	payments  map[string]payment.Payment
	pending   map[string]payment.PendingMessage
	proofs    map[string]payment.NonClosingProof
	channels  map[string]channel.Channel
	tokens    map[string]channel.Token
	notifiers map[string]notifier.Registration
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		payments:  make(map[string]payment.Payment),
		pending:   make(map[string]payment.PendingMessage),
		proofs:    make(map[string]payment.NonClosingProof),
		channels:  make(map[string]channel.Channel),
		tokens:    make(map[string]channel.Token),
		notifiers: make(map[string]notifier.Registration),
	}
}

func pendingKey(paymentID string, order int) string {
	return paymentID + "|" + strconv.Itoa(order)
}

func proofKey(channelID, token string) string {
	return channelID + "|" + strings.ToLower(strings.TrimPrefix(token, "0x"))
}

func channelKey(ch channel.Channel) string {
	return proofKey(ch.ChannelID.String(), ch.Token)
}

// PaymentStore --------------------------------------------------------------

func (m *Memory) PutPayment(_ context.Context, p payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.PaymentID] = p.Clone()
	return nil
}

func (m *Memory) GetPayment(_ context.Context, paymentID string) (payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return payment.Payment{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) ListPayments(_ context.Context) ([]payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payment.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PendingMessageStore -------------------------------------------------------

func (m *Memory) AppendPending(_ context.Context, rec payment.PendingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[pendingKey(rec.PaymentID, rec.MessageOrder)] = rec
	return nil
}

func (m *Memory) ListPending(_ context.Context) ([]payment.PendingMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payment.PendingMessage, 0, len(m.pending))
	for _, rec := range m.pending {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentID != out[j].PaymentID {
			return out[i].PaymentID < out[j].PaymentID
		}
		return out[i].MessageOrder < out[j].MessageOrder
	})
	return out, nil
}

func (m *Memory) ClearPending(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[string]payment.PendingMessage)
	return nil
}

// NonClosingProofStore ------------------------------------------------------

func (m *Memory) PutProof(_ context.Context, token string, proof payment.NonClosingProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs[proofKey(proof.ChannelID.String(), token)] = proof
	return nil
}

func (m *Memory) GetProof(_ context.Context, channelID, token string) (payment.NonClosingProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proof, ok := m.proofs[proofKey(channelID, token)]
	if !ok {
		return payment.NonClosingProof{}, ErrNotFound
	}
	return proof, nil
}

func (m *Memory) ListProofs(_ context.Context) (map[string]payment.NonClosingProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]payment.NonClosingProof, len(m.proofs))
	for key, proof := range m.proofs {
		out[key] = proof
	}
	return out, nil
}

// ChannelStore --------------------------------------------------------------

func (m *Memory) UpsertChannel(_ context.Context, ch channel.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channelKey(ch)] = ch.Clone()
	return nil
}

// LatestChannel returns the channel with the highest identifier for the
// (partner, token) pair.
func (m *Memory) LatestChannel(_ context.Context, partner, token string) (channel.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best channel.Channel
	found := false
	for _, ch := range m.channels {
		if !strings.EqualFold(ch.Partner, partner) || !strings.EqualFold(ch.Token, token) {
			continue
		}
		if !found || ch.ChannelID.Cmp(&best.ChannelID.Int) > 0 {
			best = ch
			found = true
		}
	}
	if !found {
		return channel.Channel{}, ErrNotFound
	}
	return best.Clone(), nil
}

func (m *Memory) ListChannels(_ context.Context) ([]channel.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]channel.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChannelID.Cmp(&out[j].ChannelID.Int) < 0
	})
	return out, nil
}

// TokenStore ----------------------------------------------------------------

func (m *Memory) PutToken(_ context.Context, tok channel.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[strings.ToLower(tok.Address)] = tok
	return nil
}

func (m *Memory) GetToken(_ context.Context, address string) (channel.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[strings.ToLower(address)]
	if !ok {
		return channel.Token{}, ErrNotFound
	}
	return tok, nil
}

// CredentialStore -----------------------------------------------------------

func (m *Memory) SetAddress(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.address = address
	return nil
}

func (m *Memory) Address(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.address, nil
}

func (m *Memory) SetAPIKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
	return nil
}

func (m *Memory) APIKey(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apiKey, nil
}

// NotifierStore -------------------------------------------------------------

func (m *Memory) PutNotifier(_ context.Context, reg notifier.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers[reg.URL] = reg.Clone()
	return nil
}

func (m *Memory) GetNotifier(_ context.Context, url string) (notifier.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.notifiers[url]
	if !ok {
		return notifier.Registration{}, ErrNotFound
	}
	return reg.Clone(), nil
}

func (m *Memory) ListNotifiers(_ context.Context) (map[string]notifier.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]notifier.Registration, len(m.notifiers))
	for url, reg := range m.notifiers {
		out[url] = reg.Clone()
	}
	return out, nil
}

func (m *Memory) RemoveNotifier(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifiers[url]; !ok {
		return ErrNotFound
	}
	delete(m.notifiers, url)
	return nil
}

// Exporter ------------------------------------------------------------------

func (m *Memory) Export(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Address:          m.address,
		APIKey:           m.apiKey,
		Payments:         make(map[string]payment.Payment, len(m.payments)),
		Pending:          make([]payment.PendingMessage, 0, len(m.pending)),
		NonClosingProofs: make(map[string]payment.NonClosingProof, len(m.proofs)),
		Channels:         make([]channel.Channel, 0, len(m.channels)),
		Tokens:           make([]channel.Token, 0, len(m.tokens)),
		Notifiers:        make(map[string]notifier.Registration, len(m.notifiers)),
		TakenAt:          time.Now().UTC(),
	}
	for id, p := range m.payments {
		snap.Payments[id] = p.Clone()
	}
	for _, rec := range m.pending {
		snap.Pending = append(snap.Pending, rec)
	}
	sort.Slice(snap.Pending, func(i, j int) bool {
		if snap.Pending[i].PaymentID != snap.Pending[j].PaymentID {
			return snap.Pending[i].PaymentID < snap.Pending[j].PaymentID
		}
		return snap.Pending[i].MessageOrder < snap.Pending[j].MessageOrder
	})
	for key, proof := range m.proofs {
		snap.NonClosingProofs[key] = proof
	}
	for _, ch := range m.channels {
		snap.Channels = append(snap.Channels, ch.Clone())
	}
	for _, tok := range m.tokens {
		snap.Tokens = append(snap.Tokens, tok)
	}
	for url, reg := range m.notifiers {
		snap.Notifiers[url] = reg.Clone()
	}
	return snap, nil
}

func (m *Memory) Restore(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.address = snap.Address
	m.apiKey = snap.APIKey
	m.payments = make(map[string]payment.Payment, len(snap.Payments))
	for id, p := range snap.Payments {
		m.payments[id] = p.Clone()
	}
	m.pending = make(map[string]payment.PendingMessage, len(snap.Pending))
	for _, rec := range snap.Pending {
		m.pending[pendingKey(rec.PaymentID, rec.MessageOrder)] = rec
	}
	m.proofs = make(map[string]payment.NonClosingProof, len(snap.NonClosingProofs))
	for key, proof := range snap.NonClosingProofs {
		m.proofs[key] = proof
	}
	m.channels = make(map[string]channel.Channel, len(snap.Channels))
	for _, ch := range snap.Channels {
		m.channels[channelKey(ch)] = ch.Clone()
	}
	m.tokens = make(map[string]channel.Token, len(snap.Tokens))
	for _, tok := range snap.Tokens {
		m.tokens[strings.ToLower(tok.Address)] = tok
	}
	m.notifiers = make(map[string]notifier.Registration, len(snap.Notifiers))
	for url, reg := range snap.Notifiers {
		m.notifiers[url] = reg.Clone()
	}
	return nil
}

// MemorySink is a Snapshotter keeping only the latest snapshot in memory.
// Used in tests and when no durable backend is configured.
type MemorySink struct {
	mu     sync.Mutex
	latest Snapshot
	saved  bool
	Saves  int
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	s.saved = true
	s.Saves++
	return nil
}

func (s *MemorySink) Latest(_ context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.saved, nil
}
