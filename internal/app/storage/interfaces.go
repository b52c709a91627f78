// Package storage defines the persistence contracts of the light client and
// an in-memory implementation of them.
package storage

import (
	"context"
	"errors"

	"github.com/lumino-network/light-client/internal/app/domain/channel"
	"github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/metrics"
	"github.com/lumino-network/light-client/pkg/logger"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("storage: not found")

// PaymentStore persists payment entities keyed by their hub-assigned id.
type PaymentStore interface {
	PutPayment(ctx context.Context, p payment.Payment) error
	GetPayment(ctx context.Context, paymentID string) (payment.Payment, error)
	ListPayments(ctx context.Context) ([]payment.Payment, error)
}

// PendingMessageStore records every produced envelope for crash recovery.
// Append is an upsert keyed by (payment id, message order): a retried step
// with a fresh signature overwrites the stale record.
type PendingMessageStore interface {
	AppendPending(ctx context.Context, rec payment.PendingMessage) error
	ListPending(ctx context.Context) ([]payment.PendingMessage, error)
	ClearPending(ctx context.Context) error
}

// NonClosingProofStore keeps the latest watchtower delegation per
// (channel id, token) pair.
type NonClosingProofStore interface {
	PutProof(ctx context.Context, token string, proof payment.NonClosingProof) error
	GetProof(ctx context.Context, channelID, token string) (payment.NonClosingProof, error)
	ListProofs(ctx context.Context) (map[string]payment.NonClosingProof, error)
}

// ChannelStore is the channel read model maintained by the host application.
type ChannelStore interface {
	UpsertChannel(ctx context.Context, ch channel.Channel) error
	LatestChannel(ctx context.Context, partner, token string) (channel.Channel, error)
	ListChannels(ctx context.Context) ([]channel.Channel, error)
}

// TokenStore is the token metadata read model.
type TokenStore interface {
	PutToken(ctx context.Context, tok channel.Token) error
	GetToken(ctx context.Context, address string) (channel.Token, error)
}

// CredentialStore holds the client address and the hub API key.
type CredentialStore interface {
	SetAddress(ctx context.Context, address string) error
	Address(ctx context.Context) (string, error)
	SetAPIKey(ctx context.Context, key string) error
	APIKey(ctx context.Context) (string, error)
}

// NotifierStore persists notifier subscriptions.
type NotifierStore interface {
	PutNotifier(ctx context.Context, reg notifier.Registration) error
	GetNotifier(ctx context.Context, url string) (notifier.Registration, error)
	ListNotifiers(ctx context.Context) (map[string]notifier.Registration, error)
	RemoveNotifier(ctx context.Context, url string) error
}

// Exporter produces and restores a full-state snapshot.
type Exporter interface {
	Export(ctx context.Context) (Snapshot, error)
	Restore(ctx context.Context, snap Snapshot) error
}

// Snapshotter writes snapshots to durable storage and reads the latest one
// back on restart.
type Snapshotter interface {
	Save(ctx context.Context, snap Snapshot) error
	Latest(ctx context.Context) (Snapshot, bool, error)
}

// Hook snapshots the full application state after every mutation. Services
// call Persist before reporting an operation complete so a restart resumes
// from the last committed mutation.
type Hook struct {
	source Exporter
	sink   Snapshotter
	log    *logger.Logger
}

// NewHook builds a persistence hook.
func NewHook(source Exporter, sink Snapshotter, log *logger.Logger) *Hook {
	if log == nil {
		log = logger.NewDefault("storage-hook")
	}
	return &Hook{source: source, sink: sink, log: log}
}

// Persist exports the current state and saves it.
func (h *Hook) Persist(ctx context.Context) error {
	snap, err := h.source.Export(ctx)
	if err != nil {
		return err
	}
	if err := h.sink.Save(ctx, snap); err != nil {
		return err
	}
	metrics.SnapshotSaved()
	h.log.Debugf("state snapshot persisted (%d payments, %d pending)", len(snap.Payments), len(snap.Pending))
	return nil
}
