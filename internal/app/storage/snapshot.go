package storage

import (
	"time"

	"github.com/lumino-network/light-client/internal/app/domain/channel"
	"github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
)

// Snapshot is the full application state as written to durable storage.
type Snapshot struct {
	Address          string                             `json:"address"`
	APIKey           string                             `json:"api_key"`
	Payments         map[string]payment.Payment         `json:"payments"`
	Pending          []payment.PendingMessage           `json:"pending"`
	NonClosingProofs map[string]payment.NonClosingProof `json:"non_closing_proofs"`
	Channels         []channel.Channel                  `json:"channels"`
	Tokens           []channel.Token                    `json:"tokens"`
	Notifiers        map[string]notifier.Registration   `json:"notifiers"`
	TakenAt          time.Time                          `json:"taken_at"`
}
