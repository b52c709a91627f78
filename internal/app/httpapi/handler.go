// Package httpapi exposes the light client's REST surface to the host
// application.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	notifierdomain "github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/metrics"
	"github.com/lumino-network/light-client/internal/app/services/notifier"
	"github.com/lumino-network/light-client/internal/app/services/payments"
	"github.com/lumino-network/light-client/internal/app/services/watchtower"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

const maxBodySize = 1 << 20

// PaymentEngine is the engine surface the API exposes.
type PaymentEngine interface {
	CreatePayment(ctx context.Context, partner, token string, amount *jsonbig.Int) (payment.Payment, error)
	SendProcessed(ctx context.Context, paymentID string, messageIdentifier *jsonbig.Int) (payment.Payment, error)
	SendDelivered(ctx context.Context, paymentID string, deliveredMessageIdentifier *jsonbig.Int, isReception bool) (payment.Payment, error)
	SendSecretRequest(ctx context.Context, paymentID string, messageIdentifier, expiration *jsonbig.Int) (payment.Payment, error)
	SendRevealSecret(ctx context.Context, paymentID string, isReception bool) (payment.Payment, error)
	SendBalanceProof(ctx context.Context, paymentID string, partnerMessage *payment.BalanceProof) (payment.Payment, error)
	ClearAllPending(ctx context.Context) error
	PendingMessages(ctx context.Context) ([]payment.PendingMessage, error)
	Payment(ctx context.Context, paymentID string) (payment.Payment, error)
	Payments(ctx context.Context) ([]payment.Payment, error)
}

// WatchtowerService submits non-closing balance proofs.
type WatchtowerService interface {
	Submit(ctx context.Context, paymentID string, partnerProof *payment.BalanceProof) (payment.NonClosingProof, error)
}

// OnboardingService registers the client with the hub.
type OnboardingService interface {
	Onboard(ctx context.Context, address string) (string, error)
	SetAPIKey(ctx context.Context, key string) error
}

// NotifierService manages notifier subscriptions.
type NotifierService interface {
	Register(ctx context.Context, url, apiKey string) error
	SubscribeTopic(ctx context.Context, url, topicID string) error
	SetWatermark(ctx context.Context, ids map[string]int64) error
	Remove(ctx context.Context, url string) error
	List(ctx context.Context) (map[string]notifierdomain.Registration, error)
}

// Services bundles the service dependencies of the handler.
type Services struct {
	Payments   PaymentEngine
	Watchtower WatchtowerService
	Onboarding OnboardingService
	Notifiers  NotifierService
}

type handler struct {
	svc Services
}

// NewHandler returns a mux exposing the light client REST API.
func NewHandler(svc Services) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /payments", h.createPayment)
	mux.HandleFunc("GET /payments", h.listPayments)
	mux.HandleFunc("GET /payments/{id}", h.getPayment)
	mux.HandleFunc("POST /payments/{id}/{step}", h.paymentStep)

	mux.HandleFunc("GET /pending", h.listPending)
	mux.HandleFunc("DELETE /pending", h.clearPending)

	mux.HandleFunc("POST /watchtower", h.watchtower)

	mux.HandleFunc("POST /onboarding", h.onboard)
	mux.HandleFunc("PUT /api-key", h.setAPIKey)

	mux.HandleFunc("POST /notifiers", h.registerNotifier)
	mux.HandleFunc("GET /notifiers", h.listNotifiers)
	mux.HandleFunc("DELETE /notifiers", h.removeNotifier)
	mux.HandleFunc("POST /notifiers/topics", h.subscribeTopic)
	mux.HandleFunc("PUT /notifiers/watermarks", h.setWatermarks)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (h *handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PartnerAddress string       `json:"partner_address"`
		TokenAddress   string       `json:"token_address"`
		Amount         *jsonbig.Int `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Amount == nil {
		writeError(w, http.StatusBadRequest, errors.New("amount is required"))
		return
	}
	p, err := h.svc.Payments.CreatePayment(r.Context(), payload.PartnerAddress, payload.TokenAddress, payload.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Payments.Payments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Payments.Payment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// paymentStep dispatches the protocol step named in the path.
func (h *handler) paymentStep(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var payload struct {
		MessageIdentifier          *jsonbig.Int          `json:"message_identifier"`
		DeliveredMessageIdentifier *jsonbig.Int          `json:"delivered_message_identifier"`
		Expiration                 *jsonbig.Int          `json:"expiration"`
		IsReception                bool                  `json:"is_reception"`
		PartnerBalanceProof        *payment.BalanceProof `json:"partner_balance_proof"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		p   payment.Payment
		err error
	)
	switch r.PathValue("step") {
	case "processed":
		p, err = h.svc.Payments.SendProcessed(r.Context(), paymentID, payload.MessageIdentifier)
	case "delivered":
		p, err = h.svc.Payments.SendDelivered(r.Context(), paymentID, payload.DeliveredMessageIdentifier, payload.IsReception)
	case "secret-request":
		p, err = h.svc.Payments.SendSecretRequest(r.Context(), paymentID, payload.MessageIdentifier, payload.Expiration)
	case "reveal-secret":
		p, err = h.svc.Payments.SendRevealSecret(r.Context(), paymentID, payload.IsReception)
	case "balance-proof":
		p, err = h.svc.Payments.SendBalanceProof(r.Context(), paymentID, payload.PartnerBalanceProof)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown protocol step"))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) listPending(w http.ResponseWriter, r *http.Request) {
	pend, err := h.svc.Payments.PendingMessages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pend == nil {
		pend = []payment.PendingMessage{}
	}
	writeJSON(w, http.StatusOK, pend)
}

func (h *handler) clearPending(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Payments.ClearAllPending(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) watchtower(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PaymentID           string                `json:"payment_id"`
		PartnerBalanceProof *payment.BalanceProof `json:"partner_balance_proof"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	proof, err := h.svc.Watchtower.Submit(r.Context(), payload.PaymentID, payload.PartnerBalanceProof)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func (h *handler) onboard(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := h.svc.Onboarding.Onboard(r.Context(), payload.Address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}

func (h *handler) setAPIKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Onboarding.SetAPIKey(r.Context(), payload.APIKey); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) registerNotifier(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Notifiers.Register(r.Context(), payload.URL, payload.APIKey); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) listNotifiers(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.Notifiers.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *handler) removeNotifier(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, errors.New("url query parameter is required"))
		return
	}
	if err := h.svc.Notifiers.Remove(r.Context(), url); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) subscribeTopic(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL     string `json:"url"`
		TopicID string `json:"topic_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Notifiers.SubscribeTopic(r.Context(), payload.URL, payload.TopicID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setWatermarks(w http.ResponseWriter, r *http.Request) {
	var payload map[string]int64
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Notifiers.SetWatermark(r.Context(), payload); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service sentinel errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, payments.ErrPaymentNotFound),
		errors.Is(err, payments.ErrNoChannel),
		errors.Is(err, watchtower.ErrPaymentNotFound),
		errors.Is(err, notifier.ErrNotRegistered):
		status = http.StatusNotFound
	case errors.Is(err, payments.ErrOutOfOrder):
		status = http.StatusConflict
	case errors.Is(err, payments.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err)
}

// decodeJSON decodes a request body, treating an empty body as an empty
// payload.
func decodeJSON(r io.Reader, v interface{}) error {
	err := jsonbig.Decode(io.LimitReader(r, maxBodySize), v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	raw, err := jsonbig.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
