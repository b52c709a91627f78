package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/pkg/testutil"
)

const notifierURL = "https://notifier.example.com"

func newService(t *testing.T) (*Service, *testutil.NopPersister) {
	t.Helper()
	persist := &testutil.NopPersister{}
	return New(storage.NewMemory(), persist, nil), persist
}

func TestRegisterResetsSubscriptions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, notifierURL, "nk-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SubscribeTopic(ctx, notifierURL, "12"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.SetWatermark(ctx, map[string]int64{notifierURL: 77}); err != nil {
		t.Fatalf("watermark: %v", err)
	}

	// Re-registration starts over.
	if err := svc.Register(ctx, notifierURL, "nk-2"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	regs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	reg, ok := regs[notifierURL]
	if !ok {
		t.Fatal("notifier missing after re-registration")
	}
	if reg.APIKey != "nk-2" || len(reg.Topics) != 0 || reg.FromNotificationID != 0 {
		t.Fatalf("re-registration kept old state: %+v", reg)
	}
}

func TestSubscribeAndWatermark(t *testing.T) {
	svc, persist := newService(t)
	ctx := context.Background()

	if err := svc.Register(ctx, notifierURL, "nk"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SubscribeTopic(ctx, notifierURL, "12"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.SubscribeTopic(ctx, notifierURL, "15"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.SetWatermark(ctx, map[string]int64{notifierURL: 41}); err != nil {
		t.Fatalf("watermark: %v", err)
	}

	regs, _ := svc.List(ctx)
	reg := regs[notifierURL]
	if !reg.Topics["12"] || !reg.Topics["15"] {
		t.Fatalf("topics = %v, want 12 and 15", reg.Topics)
	}
	if reg.FromNotificationID != 41 {
		t.Fatalf("watermark = %d, want 41", reg.FromNotificationID)
	}
	if persist.Persists() != 4 {
		t.Fatalf("persist calls = %d, want one per mutation", persist.Persists())
	}
}

func TestBulkWatermarkIsAtomic(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if err := svc.Register(ctx, notifierURL, "nk"); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := svc.SetWatermark(ctx, map[string]int64{
		notifierURL:        50,
		"https://unknown/": 9,
	})
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	regs, _ := svc.List(ctx)
	if regs[notifierURL].FromNotificationID != 0 {
		t.Fatal("partial watermark write on failed bulk update")
	}
}

func TestUnknownNotifier(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.SubscribeTopic(ctx, notifierURL, "12"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("subscribe err = %v, want ErrNotRegistered", err)
	}
	if err := svc.Remove(ctx, notifierURL); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("remove err = %v, want ErrNotRegistered", err)
	}
}

func TestRemove(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if err := svc.Register(ctx, notifierURL, "nk"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Remove(ctx, notifierURL); err != nil {
		t.Fatalf("remove: %v", err)
	}
	regs, _ := svc.List(ctx)
	if len(regs) != 0 {
		t.Fatalf("list = %v, want empty", regs)
	}
}
