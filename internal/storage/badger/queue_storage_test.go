package badger

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

func testQueue(t *testing.T) *QueueStorage {
	t.Helper()

	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewQueueStorage(store, common.NewSilentLogger())
}

func pending(clientID string, createdAt time.Time) *models.PendingObservation {
	return &models.PendingObservation{
		ClientEvalID: clientID,
		StoreCode:    "C0042",
		EvaluatorID:  "user_1",
		CapturedAt:   createdAt,
		Fields:       map[string]string{"store_code": "C0042"},
		CreatedAt:    createdAt,
	}
}

func TestQueueStorage_PutAndGet(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	obs := pending("c-001", time.Now())
	require.NoError(t, q.Put(ctx, obs))
	assert.Equal(t, models.SyncStatePending, obs.State)

	got, err := q.Get(ctx, "c-001")
	require.NoError(t, err)
	assert.Equal(t, "C0042", got.StoreCode)
	assert.Equal(t, models.SyncStatePending, got.State)
}

func TestQueueStorage_GetMissing(t *testing.T) {
	q := testQueue(t)

	_, err := q.Get(context.Background(), "c-missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestQueueStorage_ListDeterministicOrder(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	// Insert out of order; two entries share a timestamp.
	require.NoError(t, q.Put(ctx, pending("c-b", base.Add(time.Minute))))
	require.NoError(t, q.Put(ctx, pending("c-c", base)))
	require.NoError(t, q.Put(ctx, pending("c-a", base.Add(time.Minute))))

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c-c", list[0].ClientEvalID)
	assert.Equal(t, "c-a", list[1].ClientEvalID)
	assert.Equal(t, "c-b", list[2].ClientEvalID)

	// Same order on a second pass.
	again, err := q.List(ctx)
	require.NoError(t, err)
	for i := range list {
		assert.Equal(t, list[i].ClientEvalID, again[i].ClientEvalID)
	}
}

func TestQueueStorage_UpdateEnforcesTransitions(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	obs := pending("c-tr", time.Now())
	require.NoError(t, q.Put(ctx, obs))

	// pending -> synced skips uploading and is rejected.
	obs.State = models.SyncStateSynced
	assert.Error(t, q.Update(ctx, obs))

	obs.State = models.SyncStateUploading
	require.NoError(t, q.Update(ctx, obs))

	obs.State = models.SyncStateFailed
	obs.Attempts = 3
	obs.LastError = "server unreachable"
	require.NoError(t, q.Update(ctx, obs))

	got, err := q.Get(ctx, "c-tr")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateFailed, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "server unreachable", got.LastError)

	// Failed entries may be retried.
	got.State = models.SyncStateUploading
	assert.NoError(t, q.Update(ctx, got))
}

func TestQueueStorage_Delete(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, pending("c-del", time.Now())))
	require.NoError(t, q.Delete(ctx, "c-del"))

	_, err := q.Get(ctx, "c-del")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, q.Delete(ctx, "c-del"))
}

func TestQueueStorage_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewSilentLogger()
	ctx := context.Background()

	store, err := NewStore(logger, dir)
	require.NoError(t, err)
	q := NewQueueStorage(store, logger)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(ctx, pending("c-"+strconv.Itoa(i), time.Now())))
	}
	require.NoError(t, store.Close())

	store, err = NewStore(logger, dir)
	require.NoError(t, err)
	defer store.Close()
	q = NewQueueStorage(store, logger)

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
