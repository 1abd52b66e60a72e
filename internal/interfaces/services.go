package interfaces

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// SettingsService provides cached key/value configuration. Reads are
// served from a process-wide cache reloaded when older than the TTL;
// writes append a SettingEvent and update the cache write-through.
type SettingsService interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value, actor string) error
	ScoringThresholds(ctx context.Context) (models.ScoringThresholds, error)
	Reload(ctx context.Context) error
}

// Submission is a raw evaluation payload as received from a field device.
type Submission struct {
	ClientEvalID string
	StoreCode    string
	EvaluatorID  string
	CapturedAt   time.Time
	Latitude     float64
	Longitude    float64
	PriceSlots   []models.SegmentPriceSlot
	RawAI        json.RawMessage // optional AI payload captured on device
	Photos       []PhotoBlob
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	Evaluation *models.Evaluation
	Duplicate  bool // an evaluation with this client id already existed
}

// EvaluationService owns submission validation, idempotent persistence,
// AI-result reconciliation, and manager overrides.
type EvaluationService interface {
	Submit(ctx context.Context, sub *Submission) (*SubmitResult, error)
	Get(ctx context.Context, id string) (*models.Evaluation, error)
	List(ctx context.Context, opts EvaluationListOptions) ([]*models.Evaluation, int, error)

	// ApplyOverride records a manager's rating correction alongside the
	// AI fields. The actor is taken from the request context and must
	// hold at least manager tier.
	ApplyOverride(ctx context.Context, evalID string, rating models.Rating, reason string) (*models.Evaluation, error)

	// ExportCSV writes matching evaluations as CSV, including the
	// effective_rating column.
	ExportCSV(ctx context.Context, w io.Writer, opts EvaluationListOptions) error
}

// VisionService orchestrates AI scoring: bounded timeout, strict response
// validation, and the NEEDS_REVIEW placeholder fallback on any failure
// that must not abort the surrounding submission.
type VisionService interface {
	Score(ctx context.Context, req *ShelfScoringRequest) (*models.AIReview, error)
}
