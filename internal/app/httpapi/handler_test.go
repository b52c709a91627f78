package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	notifierdomain "github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/domain/payment"
	"github.com/lumino-network/light-client/internal/app/services/payments"
	"github.com/lumino-network/light-client/internal/jsonbig"
)

type fakeEngine struct {
	created   payment.Payment
	createErr error
	stepErr   error
	lastStep  string
	cleared   bool
}

func (f *fakeEngine) CreatePayment(_ context.Context, partner, token string, amount *jsonbig.Int) (payment.Payment, error) {
	if f.createErr != nil {
		return payment.Payment{}, f.createErr
	}
	f.created = payment.Payment{
		PaymentID: "42",
		Partner:   partner,
		Token:     token,
		Amount:    amount.Copy(),
		State:     payment.StateCreated,
	}
	return f.created, nil
}

func (f *fakeEngine) step(name string) (payment.Payment, error) {
	if f.stepErr != nil {
		return payment.Payment{}, f.stepErr
	}
	f.lastStep = name
	return payment.Payment{PaymentID: "42"}, nil
}

func (f *fakeEngine) SendProcessed(_ context.Context, _ string, _ *jsonbig.Int) (payment.Payment, error) {
	return f.step("processed")
}

func (f *fakeEngine) SendDelivered(_ context.Context, _ string, _ *jsonbig.Int, _ bool) (payment.Payment, error) {
	return f.step("delivered")
}

func (f *fakeEngine) SendSecretRequest(_ context.Context, _ string, _, _ *jsonbig.Int) (payment.Payment, error) {
	return f.step("secret-request")
}

func (f *fakeEngine) SendRevealSecret(_ context.Context, _ string, _ bool) (payment.Payment, error) {
	return f.step("reveal-secret")
}

func (f *fakeEngine) SendBalanceProof(_ context.Context, _ string, _ *payment.BalanceProof) (payment.Payment, error) {
	return f.step("balance-proof")
}

func (f *fakeEngine) ClearAllPending(context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeEngine) PendingMessages(context.Context) ([]payment.PendingMessage, error) {
	return nil, nil
}

func (f *fakeEngine) Payment(_ context.Context, id string) (payment.Payment, error) {
	if id != "42" {
		return payment.Payment{}, payments.ErrPaymentNotFound
	}
	return payment.Payment{PaymentID: "42"}, nil
}

func (f *fakeEngine) Payments(context.Context) ([]payment.Payment, error) {
	return []payment.Payment{{PaymentID: "42"}}, nil
}

type fakeWatchtower struct{}

func (fakeWatchtower) Submit(_ context.Context, paymentID string, _ *payment.BalanceProof) (payment.NonClosingProof, error) {
	return payment.NonClosingProof{LightClientPaymentID: paymentID}, nil
}

type fakeOnboarding struct {
	key string
}

func (f *fakeOnboarding) Onboard(context.Context, string) (string, error) { return "key-123", nil }
func (f *fakeOnboarding) SetAPIKey(_ context.Context, key string) error {
	f.key = key
	return nil
}

type fakeNotifiers struct {
	registered map[string]string
}

func (f *fakeNotifiers) Register(_ context.Context, url, apiKey string) error {
	if f.registered == nil {
		f.registered = make(map[string]string)
	}
	f.registered[url] = apiKey
	return nil
}
func (f *fakeNotifiers) SubscribeTopic(context.Context, string, string) error { return nil }
func (f *fakeNotifiers) SetWatermark(context.Context, map[string]int64) error { return nil }
func (f *fakeNotifiers) Remove(context.Context, string) error                 { return nil }
func (f *fakeNotifiers) List(context.Context) (map[string]notifierdomain.Registration, error) {
	return map[string]notifierdomain.Registration{}, nil
}

func newServer(t *testing.T, engine *fakeEngine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(Services{
		Payments:   engine,
		Watchtower: fakeWatchtower{},
		Onboarding: &fakeOnboarding{},
		Notifiers:  &fakeNotifiers{},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreatePaymentEndpoint(t *testing.T) {
	engine := &fakeEngine{}
	srv := newServer(t, engine)

	// Amount beyond float64 precision must survive the trip.
	body := `{"partner_address":"0xabc","token_address":"0xdef","amount":340282366920938463463374607431768211457}`
	resp, err := http.Post(srv.URL+"/payments", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got payment.Payment
	if err := jsonbig.Decode(resp.Body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := jsonbig.ParseInt("340282366920938463463374607431768211457")
	if !got.Amount.Equal(want) {
		t.Fatalf("amount = %s, want 2^128+1", got.Amount.String())
	}
}

func TestCreatePaymentErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient funds", payments.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"no channel", payments.ErrNoChannel, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{createErr: tc.err}
			srv := newServer(t, engine)
			resp, err := http.Post(srv.URL+"/payments", "application/json",
				strings.NewReader(`{"partner_address":"0xabc","token_address":"0xdef","amount":5}`))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}

func TestPaymentStepRouting(t *testing.T) {
	for _, step := range []string{"processed", "delivered", "secret-request", "reveal-secret", "balance-proof"} {
		t.Run(step, func(t *testing.T) {
			engine := &fakeEngine{}
			srv := newServer(t, engine)
			resp, err := http.Post(srv.URL+"/payments/42/"+step, "application/json",
				strings.NewReader(`{"message_identifier": 7}`))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if engine.lastStep != step {
				t.Fatalf("dispatched %q, want %q", engine.lastStep, step)
			}
		})
	}
}

func TestPaymentStepOutOfOrder(t *testing.T) {
	engine := &fakeEngine{stepErr: payments.ErrOutOfOrder}
	srv := newServer(t, engine)
	resp, err := http.Post(srv.URL+"/payments/42/processed", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestUnknownStep(t *testing.T) {
	srv := newServer(t, &fakeEngine{})
	resp, err := http.Post(srv.URL+"/payments/42/frobnicate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClearPending(t *testing.T) {
	engine := &fakeEngine{}
	srv := newServer(t, engine)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/pending", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if !engine.cleared {
		t.Fatal("pending tracker not cleared")
	}
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &fakeEngine{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, &fakeEngine{})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
