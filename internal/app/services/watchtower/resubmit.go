package watchtower

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lumino-network/light-client/internal/app/metrics"
)

const resubmitTimeout = 30 * time.Second

// cronRunner is the slice of *cron.Cron the service drives, split out so
// tests can trigger ticks directly.
type cronRunner interface {
	Start()
	Stop() context.Context
}

// Name implements system.Service.
func (s *Service) Name() string { return "watchtower" }

// Start schedules the resubmission loop. With no schedule configured the
// service starts as a no-op and Delegate retries stay queued until restart.
func (s *Service) Start(context.Context) error {
	if s.schedule == "" {
		s.log.Info("resubmission loop disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.RetryPending); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.log.Infof("resubmission loop scheduled: %s", s.schedule)
	return nil
}

// Stop halts the resubmission loop and waits for a running tick to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RetryPending resubmits every queued delegation once. Accepted delegations
// are stored, persisted and dropped from the queue.
func (s *Service) RetryPending() {
	ctx, cancel := context.WithTimeout(context.Background(), resubmitTimeout)
	defer cancel()

	s.mu.Lock()
	queued := make(map[string]retryItem, len(s.retry))
	for k, v := range s.retry {
		queued[k] = v
	}
	s.mu.Unlock()

	for key, item := range queued {
		if err := s.hub.Put(ctx, watchtowerPath, item.proof, nil); err != nil {
			metrics.WatchtowerSubmission("transport_error")
			s.log.WithError(err).Warnf("resubmission of delegation %s failed", key)
			continue
		}
		metrics.WatchtowerSubmission("retry_ok")
		if err := s.proofs.PutProof(ctx, item.token, item.proof); err != nil {
			s.log.WithError(err).Errorf("store resubmitted delegation %s", key)
			continue
		}
		if err := s.persist.Persist(ctx); err != nil {
			s.log.WithError(err).Errorf("persist after resubmission of %s", key)
		}
		s.mu.Lock()
		delete(s.retry, key)
		s.mu.Unlock()
	}
}

// RetryQueueSize reports how many delegations await resubmission.
func (s *Service) RetryQueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retry)
}
