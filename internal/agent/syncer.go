package agent

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

const (
	// maxAttemptsPerPass bounds retries of one entry within a single pass.
	// Entries that exhaust it are marked failed and picked up again on the
	// next pass.
	maxAttemptsPerPass = 3

	baseRetryDelay = 1000 * time.Millisecond
	maxRetryJitter = 500 * time.Millisecond
)

// uploader abstracts the HTTP client for tests.
type uploader interface {
	Upload(ctx context.Context, obs *models.PendingObservation) error
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Synced    int
	Failed    int
	Remaining int
}

// Syncer drains the offline queue to the server. Only one pass runs at a
// time; triggers arriving while a pass is active are rejected with
// ErrSyncInProgress rather than queued.
type Syncer struct {
	queue    interfaces.QueueStore
	client   uploader
	logger   *common.Logger
	inFlight atomic.Bool

	// sleep is replaceable in tests so backoff does not slow them down.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncer creates a syncer over a queue and upload client.
func NewSyncer(queue interfaces.QueueStore, client uploader, logger *common.Logger) *Syncer {
	return &Syncer{
		queue:  queue,
		client: client,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// SyncPass uploads every queued entry sequentially in deterministic order.
// Each entry gets up to maxAttemptsPerPass tries with exponential backoff;
// success deletes the entry, exhaustion marks it failed for the next pass.
func (s *Syncer) SyncPass(ctx context.Context) (*SyncResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, models.ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, obs := range entries {
		if ctx.Err() != nil {
			result.Remaining++
			continue
		}
		if s.syncOne(ctx, obs) {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	remaining, err := s.queue.List(ctx)
	if err == nil {
		result.Remaining = len(remaining)
	}

	s.logger.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("remaining", result.Remaining).
		Msg("Sync pass complete")

	return result, nil
}

// syncOne runs the per-entry retry loop. Returns true when the entry was
// acknowledged and deleted.
func (s *Syncer) syncOne(ctx context.Context, obs *models.PendingObservation) bool {
	for attempt := 0; attempt < maxAttemptsPerPass; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, retryDelay(attempt)); err != nil {
				break
			}
		}

		obs.State = models.SyncStateUploading
		obs.Attempts++
		obs.LastAttemptAt = time.Now()
		if err := s.queue.Update(ctx, obs); err != nil {
			s.logger.Warn().Err(err).Str("client_evaluation_id", obs.ClientEvalID).Msg("Failed to mark entry uploading")
			return false
		}

		err := s.client.Upload(ctx, obs)
		if err == nil {
			if err := s.queue.Delete(ctx, obs.ClientEvalID); err != nil {
				// The server has the record; the dedup key makes the
				// re-upload on the next pass harmless.
				s.logger.Warn().Err(err).Str("client_evaluation_id", obs.ClientEvalID).Msg("Failed to delete synced entry")
			}
			s.logger.Debug().
				Str("client_evaluation_id", obs.ClientEvalID).
				Int("attempts", obs.Attempts).
				Msg("Observation synced")
			return true
		}

		obs.LastError = err.Error()
		s.logger.Warn().Err(err).
			Str("client_evaluation_id", obs.ClientEvalID).
			Int("attempt", attempt+1).
			Msg("Upload attempt failed")
	}

	obs.State = models.SyncStateFailed
	if err := s.queue.Update(ctx, obs); err != nil {
		s.logger.Warn().Err(err).Str("client_evaluation_id", obs.ClientEvalID).Msg("Failed to mark entry failed")
	}
	return false
}

// retryDelay is 1s * 2^attempt plus up to 500ms of jitter.
func retryDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<attempt)
	return delay + time.Duration(rand.Int63n(int64(maxRetryJitter)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
