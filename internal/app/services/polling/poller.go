// Package polling drives the payment protocol forward: it periodically fetches
// hub envelopes addressed to this client and routes each one to the engine
// step it triggers.
package polling

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/jsonbig"
	"github.com/lumino-network/light-client/pkg/logger"
)

const messagesPath = "payments_light/messages"

// Stepper is the slice of the payment engine the poller drives.
type Stepper interface {
	SendProcessed(ctx context.Context, paymentID string, messageIdentifier *jsonbig.Int) (payment.Payment, error)
	SendDelivered(ctx context.Context, paymentID string, deliveredMessageIdentifier *jsonbig.Int, isReception bool) (payment.Payment, error)
	SendSecretRequest(ctx context.Context, paymentID string, messageIdentifier, expiration *jsonbig.Int) (payment.Payment, error)
	SendRevealSecret(ctx context.Context, paymentID string, isReception bool) (payment.Payment, error)
	SendBalanceProof(ctx context.Context, paymentID string, partnerMessage *payment.BalanceProof) (payment.Payment, error)
}

// HubClient is the slice of the hub transport the poller needs.
type HubClient interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
}

// Poller polls the hub on a fixed interval and dispatches received envelopes.
type Poller struct {
	hub      HubClient
	stepper  Stepper
	log      *logger.Logger
	interval time.Duration

	mu   sync.Mutex
	seen map[string]bool

	stop chan struct{}
	done chan struct{}
}

// New builds a poller. A zero interval defaults to five seconds.
func New(hub HubClient, stepper Stepper, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("polling")
	}
	return &Poller{
		hub:      hub,
		stepper:  stepper,
		log:      log,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// polledMessage is one hub envelope awaiting a client reaction.
type polledMessage struct {
	MessageID    *jsonbig.Int    `json:"message_id"`
	MessageOrder int             `json:"message_order"`
	Message      json.RawMessage `json:"message"`
}

// Name implements system.Service.
func (p *Poller) Name() string { return "polling" }

// Start launches the polling loop.
func (p *Poller) Start(context.Context) error {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run()
	p.log.Infof("polling hub every %s", p.interval)
	return nil
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.stop == nil {
		return nil
	}
	close(p.stop)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.Tick(ctx)
			cancel()
		}
	}
}

// Tick fetches pending envelopes once and routes each to its engine step.
// Exported so the application can force an immediate poll.
func (p *Poller) Tick(ctx context.Context) {
	var messages []polledMessage
	if err := p.hub.Get(ctx, messagesPath, nil, &messages); err != nil {
		p.log.WithError(err).Warn("fetch hub messages failed")
		return
	}
	for _, msg := range messages {
		p.route(ctx, msg)
	}
}

// route reacts to one hub envelope. Messages already reacted to in this run
// and steps the engine refuses as out of order are skipped silently; the next
// poll sees a consistent view again.
//
// The router covers the replies the client can produce on its own: it never
// sends the SecretRequest (the target issues that after evaluating the locked
// transfer), and reception-side payments have no local record until the host
// creates one. Both flows are driven by the host through the REST surface;
// the poller only keeps initiator-side exchanges moving.
func (p *Poller) route(ctx context.Context, msg polledMessage) {
	if msg.MessageID == nil || len(msg.Message) == 0 {
		return
	}
	paymentID := msg.MessageID.String()
	key := paymentID + "|" + strconv.Itoa(msg.MessageOrder)
	p.mu.Lock()
	if p.seen[key] {
		p.mu.Unlock()
		return
	}
	p.seen[key] = true
	p.mu.Unlock()

	typeName := gjson.GetBytes(msg.Message, "type").String()
	log := p.log.WithField("payment_id", paymentID).WithField("type", typeName)

	var err error
	switch typeName {
	case payment.TypeLockedTransfer:
		identifier := numberField(msg.Message, "message_identifier")
		_, err = p.stepper.SendProcessed(ctx, paymentID, identifier)

	case payment.TypeProcessed:
		identifier := numberField(msg.Message, "message_identifier")
		_, err = p.stepper.SendDelivered(ctx, paymentID, identifier, false)

	case payment.TypeSecretRequest:
		_, err = p.stepper.SendRevealSecret(ctx, paymentID, false)

	case payment.TypeRevealSecret:
		identifier := numberField(msg.Message, "message_identifier")
		_, err = p.stepper.SendDelivered(ctx, paymentID, identifier, true)

	case payment.TypeSecret:
		body, decodeErr := payment.DecodeBody(msg.Message)
		if decodeErr != nil {
			log.WithError(decodeErr).Warn("undecodable balance proof")
			return
		}
		proof, ok := body.(*payment.BalanceProof)
		if !ok {
			return
		}
		_, err = p.stepper.SendBalanceProof(ctx, paymentID, proof)

	case payment.TypeDelivered:
		// Transport acknowledgement, nothing to produce.
		return

	default:
		log.Warn("unrecognized message type")
		return
	}
	if err != nil {
		p.forget(key)
		log.WithError(err).Warn("step dispatch failed")
	}
}

func (p *Poller) forget(key string) {
	p.mu.Lock()
	delete(p.seen, key)
	p.mu.Unlock()
}

func numberField(raw []byte, field string) *jsonbig.Int {
	v := gjson.GetBytes(raw, field)
	if !v.Exists() {
		return jsonbig.NewInt(0)
	}
	n, err := jsonbig.ParseInt(v.Raw)
	if err != nil {
		n, err = jsonbig.ParseInt(v.String())
		if err != nil {
			return jsonbig.NewInt(0)
		}
	}
	return n
}
