// Package notifier keeps the registry of external notification services the
// client is subscribed to, with per-notifier topic sets and notification
// watermarks.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumino-network/light-client/internal/app/domain/notifier"
	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/pkg/logger"
)

// ErrNotRegistered means the referenced notifier URL is unknown.
var ErrNotRegistered = errors.New("notifier: not registered")

// Persister snapshots the full application state after a mutation.
type Persister interface {
	Persist(ctx context.Context) error
}

// Service owns notifier subscription bookkeeping.
type Service struct {
	store   storage.NotifierStore
	persist Persister
	log     *logger.Logger
}

// New builds a notifier service.
func New(store storage.NotifierStore, persist Persister, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifier")
	}
	return &Service{store: store, persist: persist, log: log}
}

// Register records a notifier under its URL with an empty topic set and a
// zero watermark. Re-registering resets prior subscriptions.
func (s *Service) Register(ctx context.Context, url, apiKey string) error {
	if url == "" {
		return errors.New("notifier: empty url")
	}
	reg := notifier.Registration{
		URL:    url,
		APIKey: apiKey,
		Topics: make(map[string]bool),
	}
	if err := s.store.PutNotifier(ctx, reg); err != nil {
		return err
	}
	s.log.Infof("notifier %s registered", url)
	return s.persist.Persist(ctx)
}

// SubscribeTopic adds a topic to a registered notifier.
func (s *Service) SubscribeTopic(ctx context.Context, url, topicID string) error {
	reg, err := s.get(ctx, url)
	if err != nil {
		return err
	}
	if reg.Topics == nil {
		reg.Topics = make(map[string]bool)
	}
	reg.Topics[topicID] = true
	if err := s.store.PutNotifier(ctx, reg); err != nil {
		return err
	}
	return s.persist.Persist(ctx)
}

// SetWatermark moves the fromNotificationId watermark of several notifiers at
// once, keyed by URL. Unknown URLs fail the whole call before any write.
func (s *Service) SetWatermark(ctx context.Context, ids map[string]int64) error {
	updated := make([]notifier.Registration, 0, len(ids))
	for url, id := range ids {
		reg, err := s.get(ctx, url)
		if err != nil {
			return err
		}
		reg.FromNotificationID = id
		updated = append(updated, reg)
	}
	for _, reg := range updated {
		if err := s.store.PutNotifier(ctx, reg); err != nil {
			return err
		}
	}
	return s.persist.Persist(ctx)
}

// Remove drops a notifier and all its subscriptions.
func (s *Service) Remove(ctx context.Context, url string) error {
	if _, err := s.get(ctx, url); err != nil {
		return err
	}
	if err := s.store.RemoveNotifier(ctx, url); err != nil {
		return err
	}
	s.log.Infof("notifier %s removed", url)
	return s.persist.Persist(ctx)
}

// List returns all registrations keyed by URL.
func (s *Service) List(ctx context.Context) (map[string]notifier.Registration, error) {
	return s.store.ListNotifiers(ctx)
}

func (s *Service) get(ctx context.Context, url string) (notifier.Registration, error) {
	reg, err := s.store.GetNotifier(ctx, url)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notifier.Registration{}, fmt.Errorf("%w: %s", ErrNotRegistered, url)
		}
		return notifier.Registration{}, err
	}
	return reg, nil
}
