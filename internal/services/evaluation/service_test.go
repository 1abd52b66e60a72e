package evaluation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

type fakeEvalStore struct {
	byID       map[string]*models.Evaluation
	byClientID map[string]*models.Evaluation
	creates    int
}

func newFakeEvalStore() *fakeEvalStore {
	return &fakeEvalStore{
		byID:       map[string]*models.Evaluation{},
		byClientID: map[string]*models.Evaluation{},
	}
}

func (f *fakeEvalStore) Create(ctx context.Context, eval *models.Evaluation) error {
	f.creates++
	f.byID[eval.ID] = eval
	f.byClientID[eval.ClientEvalID] = eval
	return nil
}

func (f *fakeEvalStore) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	return f.byID[id], nil
}

func (f *fakeEvalStore) GetByClientEvalID(ctx context.Context, clientEvalID string) (*models.Evaluation, error) {
	return f.byClientID[clientEvalID], nil
}

func (f *fakeEvalStore) List(ctx context.Context, opts interfaces.EvaluationListOptions) ([]*models.Evaluation, int, error) {
	var out []*models.Evaluation
	for _, eval := range f.byID {
		out = append(out, eval)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeEvalStore) SetOverride(ctx context.Context, id string, ov *models.Override) error {
	eval, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	eval.Override = ov
	return nil
}

type fakeFileStore struct {
	saved map[string][]byte
	err   error
}

func (f *fakeFileStore) SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[category+"/"+key] = data
	return nil
}

func (f *fakeFileStore) GetFile(ctx context.Context, category, key string) ([]byte, string, error) {
	return f.saved[category+"/"+key], "image/jpeg", nil
}

func (f *fakeFileStore) DeleteFile(ctx context.Context, category, key string) error { return nil }
func (f *fakeFileStore) HasFile(ctx context.Context, category, key string) (bool, error) {
	_, ok := f.saved[category+"/"+key]
	return ok, nil
}

type fakeAuditStore struct {
	records []*models.AuditRecord
}

func (f *fakeAuditStore) Append(ctx context.Context, record *models.AuditRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditStore) List(ctx context.Context, entityID string, limit int) ([]*models.AuditRecord, error) {
	return f.records, nil
}

type fakeVision struct {
	review *models.AIReview
	err    error
	calls  int
	lastRq *interfaces.ShelfScoringRequest
}

func (f *fakeVision) Score(ctx context.Context, req *interfaces.ShelfScoringRequest) (*models.AIReview, error) {
	f.calls++
	f.lastRq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.review, nil
}

type fakeDirectory struct {
	stores map[string]*models.Store
}

func (f *fakeDirectory) Upsert(ctx context.Context, store *models.Store) (bool, error) {
	return false, nil
}

func (f *fakeDirectory) Get(ctx context.Context, customerCode string) (*models.Store, error) {
	return f.stores[customerCode], nil
}

func (f *fakeDirectory) List(ctx context.Context, region string) ([]*models.Store, error) {
	return nil, nil
}

func (f *fakeDirectory) Delete(ctx context.Context, customerCode string) error { return nil }

type testHarness struct {
	svc    *Service
	store  *fakeEvalStore
	files  *fakeFileStore
	audit  *fakeAuditStore
	vision *fakeVision
}

func newHarness() *testHarness {
	store := newFakeEvalStore()
	files := &fakeFileStore{}
	audit := &fakeAuditStore{}
	vision := &fakeVision{review: goodReview()}
	dir := &fakeDirectory{stores: map[string]*models.Store{
		"C0042": {CustomerCode: "C0042", Name: "Main Street Auto", BrandNames: []string{"Acme"}},
	}}
	svc := NewService(store, files, audit, vision, dir, common.NewSilentLogger())
	return &testHarness{svc: svc, store: store, files: files, audit: audit, vision: vision}
}

func goodReview() *models.AIReview {
	return &models.AIReview{
		Rating:     models.RatingGood,
		Score:      80,
		Confidence: 0.9,
		SubScores: models.SubScores{
			Visibility: 20, ShelfShare: 20, PlacementQuality: 20, Availability: 20,
		},
		Summary:         "Strong execution",
		Why:             []string{"good facings", "clean shelf", "full stock"},
		Evidence:        []string{"photo 1 shows full shelf"},
		Recommendations: []string{"maintain current layout"},
	}
}

func validSubmission(clientID string) *interfaces.Submission {
	raw, _ := json.Marshal(goodReview())
	return &interfaces.Submission{
		ClientEvalID: clientID,
		StoreCode:    "C0042",
		EvaluatorID:  "user_1",
		CapturedAt:   time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC),
		PriceSlots:   fullSlotSet(),
		RawAI:        raw,
	}
}

func TestSubmit_CreatesEvaluation(t *testing.T) {
	h := newHarness()

	res, err := h.svc.Submit(context.Background(), validSubmission("c-001"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.True(t, strings.HasPrefix(res.Evaluation.ID, "ev_"))
	assert.Equal(t, models.RatingGood, res.Evaluation.EffectiveRating())
	assert.Equal(t, 1, h.store.creates)

	require.Len(t, h.audit.records, 1)
	assert.Equal(t, models.AuditActionEvaluationCreated, h.audit.records[0].Action)
}

func TestSubmit_DuplicateClientIDReturnsExisting(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.svc.Submit(ctx, validSubmission("c-dup"))
	require.NoError(t, err)

	second, err := h.svc.Submit(ctx, validSubmission("c-dup"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Evaluation.ID, second.Evaluation.ID)
	assert.Equal(t, 1, h.store.creates)
}

func TestSubmit_MissingSlotRejectedNothingPersisted(t *testing.T) {
	h := newHarness()
	sub := validSubmission("c-bad")
	sub.PriceSlots = sub.PriceSlots[:5] // drops BATTERIES 2 and TIRES 1

	_, err := h.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, h.store.creates)
	assert.Empty(t, h.audit.records)
}

func TestSubmit_MissingClientEvalID(t *testing.T) {
	h := newHarness()
	sub := validSubmission("")

	_, err := h.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_evaluation_id")
}

func TestSubmit_InvalidAIPayloadFallsBackToPlaceholder(t *testing.T) {
	h := newHarness()
	sub := validSubmission("c-badai")
	sub.RawAI = []byte(`{"rating":"GOOD","score":999}`)

	res, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, res.Evaluation.AI)
	assert.True(t, res.Evaluation.AI.Placeholder)
	assert.Equal(t, models.RatingNeedsReview, res.Evaluation.EffectiveRating())
	assert.Equal(t, 0.0, res.Evaluation.AI.Confidence)
}

func TestSubmit_PhotosScoredServerSide(t *testing.T) {
	h := newHarness()
	sub := validSubmission("c-photo")
	sub.RawAI = nil
	sub.Photos = []interfaces.PhotoBlob{
		{Name: "shelf front.jpg", ContentType: "image/jpeg", Data: []byte("jpegbytes")},
	}

	res, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 1, h.vision.calls)
	// Store context forwarded to the scorer.
	assert.Equal(t, "Main Street Auto", h.vision.lastRq.StoreName)
	assert.Equal(t, models.RatingGood, res.Evaluation.EffectiveRating())

	require.Len(t, res.Evaluation.PhotoKeys, 1)
	assert.NotContains(t, res.Evaluation.PhotoKeys[0], " ")
	assert.Len(t, h.files.saved, 1)
}

func TestSubmit_VisionErrorNeverFatal(t *testing.T) {
	h := newHarness()
	h.vision.err = models.ErrQuotaExceeded
	sub := validSubmission("c-quota")
	sub.RawAI = nil
	sub.Photos = []interfaces.PhotoBlob{{Name: "a.jpg", Data: []byte("x")}}

	res, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, res.Evaluation.AI.Placeholder)
	assert.Equal(t, models.RatingNeedsReview, res.Evaluation.EffectiveRating())
}

func TestSubmit_NoAINoPhotosPlaceholder(t *testing.T) {
	h := newHarness()
	sub := validSubmission("c-bare")
	sub.RawAI = nil

	res, err := h.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, res.Evaluation.AI.Placeholder)
	assert.Equal(t, 0, h.vision.calls)
}

func TestGet_UnknownIDNotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Get(context.Background(), "ev_missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func managerCtx() context.Context {
	return common.WithActor(context.Background(), &common.ActorContext{
		UserID: "mgr_1", Email: "mgr@example.com", Role: models.RoleManager,
	})
}

func TestApplyOverride_ReplacesRatingKeepsAI(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Submit(context.Background(), validSubmission("c-ovr"))
	require.NoError(t, err)

	eval, err := h.svc.ApplyOverride(managerCtx(), res.Evaluation.ID, models.RatingBad, "stock photo does not match shelf")
	require.NoError(t, err)
	assert.Equal(t, models.RatingBad, eval.EffectiveRating())
	// AI fields untouched under the override.
	assert.Equal(t, models.RatingGood, eval.AI.Rating)
	assert.Equal(t, 80.0, eval.AI.Score)
	assert.Equal(t, "mgr_1", eval.Override.OverriddenBy)

	require.Len(t, h.audit.records, 2)
	last := h.audit.records[1]
	assert.Equal(t, models.AuditActionRatingOverridden, last.Action)
	assert.Contains(t, string(last.Before), "GOOD")
	assert.Contains(t, string(last.After), "BAD")
}

func TestApplyOverride_ReOverrideReplacesWholesale(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Submit(context.Background(), validSubmission("c-ovr2"))
	require.NoError(t, err)

	_, err = h.svc.ApplyOverride(managerCtx(), res.Evaluation.ID, models.RatingBad, "first correction applied")
	require.NoError(t, err)
	eval, err := h.svc.ApplyOverride(managerCtx(), res.Evaluation.ID, models.RatingRegular, "second look, shelf acceptable")
	require.NoError(t, err)

	assert.Equal(t, models.RatingRegular, eval.Override.Rating)
	assert.Equal(t, "second look, shelf acceptable", eval.Override.Reason)
}

func TestApplyOverride_FieldRoleForbidden(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Submit(context.Background(), validSubmission("c-ovr3"))
	require.NoError(t, err)

	ctx := common.WithActor(context.Background(), &common.ActorContext{UserID: "u1", Role: models.RoleField})
	_, err = h.svc.ApplyOverride(ctx, res.Evaluation.ID, models.RatingBad, "not allowed to do this")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = h.svc.ApplyOverride(context.Background(), res.Evaluation.ID, models.RatingBad, "anonymous override attempt")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApplyOverride_ShortReasonRejected(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Submit(context.Background(), validSubmission("c-ovr4"))
	require.NoError(t, err)

	_, err = h.svc.ApplyOverride(managerCtx(), res.Evaluation.ID, models.RatingBad, "too short")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)
}

func TestApplyOverride_InvalidRating(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Submit(context.Background(), validSubmission("c-ovr5"))
	require.NoError(t, err)

	_, err = h.svc.ApplyOverride(managerCtx(), res.Evaluation.ID, models.Rating("GREAT"), "a perfectly fine reason")
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestApplyOverride_UnknownEvaluation(t *testing.T) {
	h := newHarness()

	_, err := h.svc.ApplyOverride(managerCtx(), "ev_nope", models.RatingBad, "a perfectly fine reason")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExportCSV_EffectiveRatingColumn(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res1, err := h.svc.Submit(ctx, validSubmission("c-csv1"))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, validSubmission("c-csv2"))
	require.NoError(t, err)
	_, err = h.svc.ApplyOverride(managerCtx(), res1.Evaluation.ID, models.RatingBad, "shelf photo was stale")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.svc.ExportCSV(ctx, &buf, interfaces.EvaluationListOptions{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "effective_rating", rows[0][len(rows[0])-1])

	effective := map[string]string{}
	for _, row := range rows[1:] {
		effective[row[1]] = row[len(row)-1]
	}
	assert.Equal(t, "BAD", effective["c-csv1"])
	assert.Equal(t, "GOOD", effective["c-csv2"])
}

func TestList_FiltersByEffectiveRating(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res1, err := h.svc.Submit(ctx, validSubmission("c-flt1"))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, validSubmission("c-flt2"))
	require.NoError(t, err)
	_, err = h.svc.ApplyOverride(managerCtx(), res1.Evaluation.ID, models.RatingBad, "display was dismantled")
	require.NoError(t, err)

	items, total, err := h.svc.List(ctx, interfaces.EvaluationListOptions{Rating: models.RatingBad})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "c-flt1", items[0].ClientEvalID)

	// The override wins over the AI rating, so the overridden record no
	// longer matches GOOD.
	items, total, err = h.svc.List(ctx, interfaces.EvaluationListOptions{Rating: models.RatingGood})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "c-flt2", items[0].ClientEvalID)
}

func TestExportCSV_ListErrorPropagates(t *testing.T) {
	h := newHarness()
	svc := NewService(&erroringEvalStore{}, h.files, h.audit, nil, nil, common.NewSilentLogger())

	var buf bytes.Buffer
	err := svc.ExportCSV(context.Background(), &buf, interfaces.EvaluationListOptions{})
	assert.Error(t, err)
}

type erroringEvalStore struct{ fakeEvalStore }

func (e *erroringEvalStore) List(ctx context.Context, opts interfaces.EvaluationListOptions) ([]*models.Evaluation, int, error) {
	return nil, 0, errors.New("db down")
}

func TestSubmit_PhotoSaveFailureAborts(t *testing.T) {
	h := newHarness()
	h.files.err = fmt.Errorf("disk full")
	sub := validSubmission("c-disk")
	sub.Photos = []interfaces.PhotoBlob{{Name: "a.jpg", Data: []byte("x")}}

	_, err := h.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, 0, h.store.creates)
}
