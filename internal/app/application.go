package app

import (
	"context"
	"fmt"
	"time"

	"github.com/lumino-network/light-client/internal/app/services/notifier"
	"github.com/lumino-network/light-client/internal/app/services/onboarding"
	"github.com/lumino-network/light-client/internal/app/services/payments"
	"github.com/lumino-network/light-client/internal/app/services/polling"
	"github.com/lumino-network/light-client/internal/app/services/watchtower"
	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/app/system"
	"github.com/lumino-network/light-client/internal/hub"
	"github.com/lumino-network/light-client/internal/signing"
	"github.com/lumino-network/light-client/pkg/logger"
)

// Options configures the application. Hub and Signer are required; nil State
// and Snapshots default to the in-memory implementations.
type Options struct {
	Hub    *hub.Client
	Signer signing.Signer

	State     *storage.Memory
	Snapshots storage.Snapshotter

	PollInterval      time.Duration
	WatchtowerRetries string

	Log *logger.Logger
}

// Application ties the light client services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	State     *storage.Memory
	Snapshots storage.Snapshotter

	Payments   *payments.Engine
	Watchtower *watchtower.Service
	Onboarding *onboarding.Service
	Notifiers  *notifier.Service
	Poller     *polling.Poller
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("app: hub client is required")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("app: signer is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}
	state := opts.State
	if state == nil {
		state = storage.NewMemory()
	}
	snapshots := opts.Snapshots
	if snapshots == nil {
		snapshots = storage.NewMemorySink()
	}
	hook := storage.NewHook(state, snapshots, log)

	engine := payments.New(payments.Deps{
		Payments:    state,
		Pending:     state,
		Channels:    state,
		Tokens:      state,
		Credentials: state,
		Hub:         opts.Hub,
		Signer:      opts.Signer,
		Persist:     hook,
		Log:         log,
	})
	wt := watchtower.New(watchtower.Deps{
		Payments:         state,
		Proofs:           state,
		Hub:              opts.Hub,
		Signer:           opts.Signer,
		Persist:          hook,
		Log:              log,
		ResubmitSchedule: opts.WatchtowerRetries,
	})
	onboard := onboarding.New(onboarding.Deps{
		Credentials: state,
		Hub:         opts.Hub,
		Signer:      opts.Signer,
		Persist:     hook,
		Log:         log,
	})
	notifiers := notifier.New(state, hook, log)
	poller := polling.New(opts.Hub, engine, opts.PollInterval, log)

	manager := system.NewManager()
	for _, svc := range []system.Service{poller, wt} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		State:      state,
		Snapshots:  snapshots,
		Payments:   engine,
		Watchtower: wt,
		Onboarding: onboard,
		Notifiers:  notifiers,
		Poller:     poller,
	}, nil
}

// Restore loads the latest durable snapshot into the in-memory state and arms
// the hub transport with the restored API key. A missing snapshot is not an
// error; the client starts fresh.
func (a *Application) Restore(ctx context.Context, client *hub.Client) error {
	snap, ok, err := a.Snapshots.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	if !ok {
		a.log.Info("no snapshot found, starting with empty state")
		return nil
	}
	if err := a.State.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if snap.APIKey != "" && client != nil {
		client.SetAPIKey(snap.APIKey)
	}
	a.log.Infof("state restored from snapshot taken %s (%d payments, %d pending)",
		snap.TakenAt.Format(time.RFC3339), len(snap.Payments), len(snap.Pending))
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
