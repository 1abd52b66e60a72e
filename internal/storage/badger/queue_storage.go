package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// QueueStorage implements interfaces.QueueStore on BadgerHold. Entries are
// keyed by client evaluation id; Put on an existing key replaces the entry.
type QueueStorage struct {
	store  *Store
	logger *common.Logger
}

// NewQueueStorage creates a new QueueStorage.
func NewQueueStorage(store *Store, logger *common.Logger) *QueueStorage {
	return &QueueStorage{store: store, logger: logger}
}

func (s *QueueStorage) Put(_ context.Context, obs *models.PendingObservation) error {
	if obs.ClientEvalID == "" {
		return fmt.Errorf("pending observation missing client evaluation id")
	}
	if obs.State == "" {
		obs.State = models.SyncStatePending
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}

	if err := s.store.db.Upsert(obs.ClientEvalID, obs); err != nil {
		return fmt.Errorf("failed to queue observation %s: %w", obs.ClientEvalID, err)
	}
	return nil
}

func (s *QueueStorage) Get(_ context.Context, clientEvalID string) (*models.PendingObservation, error) {
	var obs models.PendingObservation
	err := s.store.db.Get(clientEvalID, &obs)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queued observation %s: %w", clientEvalID, err)
	}
	return &obs, nil
}

// List returns all queued entries ordered by created_at, then client id,
// so repeated passes process entries in the same order.
func (s *QueueStorage) List(_ context.Context) ([]*models.PendingObservation, error) {
	var entries []models.PendingObservation
	if err := s.store.db.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list queued observations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ClientEvalID < entries[j].ClientEvalID
	})

	out := make([]*models.PendingObservation, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}

// Update persists state and attempt bookkeeping changes, enforcing the
// sync transition table.
func (s *QueueStorage) Update(ctx context.Context, obs *models.PendingObservation) error {
	existing, err := s.Get(ctx, obs.ClientEvalID)
	if err != nil {
		return err
	}
	if existing.State != obs.State && !models.CanTransition(existing.State, obs.State) {
		return fmt.Errorf("illegal sync transition %s -> %s for %s", existing.State, obs.State, obs.ClientEvalID)
	}

	if err := s.store.db.Upsert(obs.ClientEvalID, obs); err != nil {
		return fmt.Errorf("failed to update queued observation %s: %w", obs.ClientEvalID, err)
	}
	return nil
}

func (s *QueueStorage) Delete(_ context.Context, clientEvalID string) error {
	err := s.store.db.Delete(clientEvalID, models.PendingObservation{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete queued observation %s: %w", clientEvalID, err)
	}
	return nil
}

func (s *QueueStorage) Close() error {
	return s.store.Close()
}

// Compile-time check
var _ interfaces.QueueStore = (*QueueStorage)(nil)
