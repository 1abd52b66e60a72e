// Package evaluation owns submission validation, idempotent persistence,
// AI-result reconciliation, and manager overrides.
package evaluation

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// minOverrideReasonLen forces a meaningful justification on overrides.
const minOverrideReasonLen = 10

// Service implements interfaces.EvaluationService.
type Service struct {
	store  interfaces.EvaluationStore
	files  interfaces.FileStore
	audit  interfaces.AuditStore
	vision interfaces.VisionService
	dir    interfaces.StoreDirectory
	logger *common.Logger
}

// NewService creates an evaluation service. vision may be nil when no AI
// client is configured; submissions then fall back to the placeholder
// review unless they carry a device-side AI payload.
func NewService(
	store interfaces.EvaluationStore,
	files interfaces.FileStore,
	audit interfaces.AuditStore,
	vision interfaces.VisionService,
	dir interfaces.StoreDirectory,
	logger *common.Logger,
) *Service {
	return &Service{
		store:  store,
		files:  files,
		audit:  audit,
		vision: vision,
		dir:    dir,
		logger: logger,
	}
}

// Submit validates and persists one field capture. Duplicate client
// evaluation ids return the existing record instead of creating a second
// one; validation failures persist nothing.
func (s *Service) Submit(ctx context.Context, sub *interfaces.Submission) (*interfaces.SubmitResult, error) {
	if strings.TrimSpace(sub.ClientEvalID) == "" {
		return nil, &ValidationError{Field: "client_evaluation_id", Message: "is required"}
	}
	if strings.TrimSpace(sub.StoreCode) == "" {
		return nil, &ValidationError{Field: "store_code", Message: "is required"}
	}

	if err := validateSlots(sub.PriceSlots); err != nil {
		return nil, err
	}
	slots := deriveIndices(sub.PriceSlots)
	if err := checkIndices(slots); err != nil {
		return nil, err
	}

	// Idempotency: a known client id returns the existing record.
	existing, err := s.store.GetByClientEvalID(ctx, sub.ClientEvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate submission: %w", err)
	}
	if existing != nil {
		s.logger.Debug().
			Str("client_evaluation_id", sub.ClientEvalID).
			Str("evaluation_id", existing.ID).
			Msg("Duplicate submission, returning existing evaluation")
		return &interfaces.SubmitResult{Evaluation: existing, Duplicate: true}, nil
	}

	review := s.resolveReview(ctx, sub)

	evaluatorID := sub.EvaluatorID
	if evaluatorID == "" {
		evaluatorID = common.ResolveActorID(ctx)
	}
	capturedAt := sub.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	eval := &models.Evaluation{
		ID:           "ev_" + uuid.New().String()[:8],
		ClientEvalID: sub.ClientEvalID,
		StoreCode:    sub.StoreCode,
		EvaluatorID:  evaluatorID,
		CapturedAt:   capturedAt,
		Latitude:     sub.Latitude,
		Longitude:    sub.Longitude,
		AI:           review,
		PriceSlots:   slots,
		CreatedAt:    time.Now(),
	}

	for i, photo := range sub.Photos {
		key := fmt.Sprintf("%s/%d_%s", eval.ID, i, sanitizeKey(photo.Name))
		if err := s.files.SaveFile(ctx, "photos", key, photo.Data, photo.ContentType); err != nil {
			return nil, fmt.Errorf("failed to store photo %s: %w", photo.Name, err)
		}
		eval.PhotoKeys = append(eval.PhotoKeys, key)
	}

	if err := s.store.Create(ctx, eval); err != nil {
		return nil, fmt.Errorf("failed to persist evaluation: %w", err)
	}

	s.appendAudit(ctx, &models.AuditRecord{
		Action:   models.AuditActionEvaluationCreated,
		EntityID: eval.ID,
		Actor:    evaluatorID,
		After:    marshalRaw(map[string]any{"rating": eval.EffectiveRating(), "store_code": eval.StoreCode}),
	})

	s.logger.Info().
		Str("evaluation_id", eval.ID).
		Str("store_code", eval.StoreCode).
		Str("rating", string(eval.EffectiveRating())).
		Bool("ai_placeholder", review != nil && review.Placeholder).
		Msg("Evaluation created")

	return &interfaces.SubmitResult{Evaluation: eval}, nil
}

// resolveReview produces the AI review for a submission: a device-side
// payload is validated (falling back to the placeholder on any shape
// deviation); otherwise attached photos are scored server-side. Either
// path always yields a review — an AI failure never drops the capture.
func (s *Service) resolveReview(ctx context.Context, sub *interfaces.Submission) *models.AIReview {
	if len(sub.RawAI) > 0 {
		review, ok := parseAIPayload(sub.RawAI)
		if !ok {
			s.logger.Warn().
				Str("client_evaluation_id", sub.ClientEvalID).
				Msg("Attached AI payload rejected, using placeholder")
		}
		return review
	}

	if len(sub.Photos) > 0 && s.vision != nil {
		req := &interfaces.ShelfScoringRequest{
			StoreCode: sub.StoreCode,
			Photos:    sub.Photos,
		}
		if s.dir != nil {
			if store, err := s.dir.Get(ctx, sub.StoreCode); err == nil && store != nil {
				req.StoreName = store.Name
				req.BrandNames = store.BrandNames
			}
		}
		review, err := s.vision.Score(ctx, req)
		if err != nil {
			// Score already downgrades shape/timeout failures; an error
			// here is quota or transport. Still never fatal.
			s.logger.Warn().Err(err).
				Str("client_evaluation_id", sub.ClientEvalID).
				Msg("Vision scoring failed, using placeholder")
			return models.PlaceholderReview(err.Error())
		}
		return review
	}

	return models.PlaceholderReview("no AI result attached")
}

// Get returns one evaluation by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	eval, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, models.ErrNotFound
	}
	return eval, nil
}

// List returns evaluations matching the options. The rating filter works
// on the effective rating, which is derived from override precedence, so
// it is applied here rather than in the store query.
func (s *Service) List(ctx context.Context, opts interfaces.EvaluationListOptions) ([]*models.Evaluation, int, error) {
	if opts.Rating == "" {
		return s.store.List(ctx, opts)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 20
	}

	fetch := opts
	fetch.Rating = ""
	fetch.Page = 1
	fetch.PerPage = 500

	var matched []*models.Evaluation
	for {
		items, total, err := s.store.List(ctx, fetch)
		if err != nil {
			return nil, 0, err
		}
		for _, eval := range items {
			if eval.EffectiveRating() == opts.Rating {
				matched = append(matched, eval)
			}
		}
		if fetch.Page*fetch.PerPage >= total || len(items) == 0 {
			break
		}
		fetch.Page++
	}

	total := len(matched)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ApplyOverride records a manager's rating correction atop the AI rating.
// The AI fields are preserved; re-overriding replaces the override fields.
func (s *Service) ApplyOverride(ctx context.Context, evalID string, rating models.Rating, reason string) (*models.Evaluation, error) {
	actor := common.ActorFromContext(ctx)
	if actor == nil || !models.RoleAtLeast(actor.Role, models.RoleManager) {
		return nil, models.ErrForbidden
	}

	if !models.ValidRatings[rating] {
		return nil, &ValidationError{Field: "rating", Message: fmt.Sprintf("invalid rating %q", rating)}
	}
	if len(strings.TrimSpace(reason)) < minOverrideReasonLen {
		return nil, &ValidationError{
			Field:   "reason",
			Message: fmt.Sprintf("must be at least %d characters", minOverrideReasonLen),
		}
	}

	eval, err := s.store.Get(ctx, evalID)
	if err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, models.ErrNotFound
	}

	before := eval.EffectiveRating()
	ov := &models.Override{
		Rating:       rating,
		Reason:       strings.TrimSpace(reason),
		OverriddenBy: actor.UserID,
		OverriddenAt: time.Now(),
	}
	if err := s.store.SetOverride(ctx, evalID, ov); err != nil {
		return nil, fmt.Errorf("failed to record override: %w", err)
	}
	eval.Override = ov

	s.appendAudit(ctx, &models.AuditRecord{
		Action:   models.AuditActionRatingOverridden,
		EntityID: evalID,
		Actor:    actor.UserID,
		Before:   marshalRaw(map[string]any{"rating": before}),
		After:    marshalRaw(map[string]any{"rating": rating}),
		Detail:   ov.Reason,
	})

	s.logger.Info().
		Str("evaluation_id", evalID).
		Str("before", string(before)).
		Str("after", string(rating)).
		Str("actor", actor.UserID).
		Msg("Rating overridden")

	return eval, nil
}

// ExportCSV writes matching evaluations as CSV. The effective_rating
// column applies the override-over-AI precedence rule.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, opts interfaces.EvaluationListOptions) error {
	cw := csv.NewWriter(w)
	header := []string{
		"id", "client_evaluation_id", "store_code", "evaluator_id", "captured_at",
		"ai_rating", "ai_score", "ai_confidence", "override_rating", "override_reason",
		"effective_rating",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Stores ignore the rating option, so the effective-rating filter is
	// applied per row here, same as List.
	rating := opts.Rating
	opts.Rating = ""
	opts.Page = 1
	if opts.PerPage <= 0 {
		opts.PerPage = 500
	}
	for {
		items, total, err := s.store.List(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to list evaluations for export: %w", err)
		}
		for _, eval := range items {
			if rating != "" && eval.EffectiveRating() != rating {
				continue
			}
			row := []string{
				eval.ID, eval.ClientEvalID, eval.StoreCode, eval.EvaluatorID,
				eval.CapturedAt.Format(time.RFC3339),
				"", "", "", "", "",
				string(eval.EffectiveRating()),
			}
			if eval.AI != nil {
				row[5] = string(eval.AI.Rating)
				row[6] = strconv.FormatFloat(eval.AI.Score, 'f', -1, 64)
				row[7] = strconv.FormatFloat(eval.AI.Confidence, 'f', -1, 64)
			}
			if eval.Override != nil {
				row[8] = string(eval.Override.Rating)
				row[9] = eval.Override.Reason
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		if opts.Page*opts.PerPage >= total || len(items) == 0 {
			break
		}
		opts.Page++
	}

	cw.Flush()
	return cw.Error()
}

func (s *Service) appendAudit(ctx context.Context, record *models.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("action", record.Action).Msg("Failed to append audit record")
	}
}

func marshalRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// sanitizeKey makes a photo filename safe for use as a storage key.
func sanitizeKey(name string) string {
	if name == "" {
		return "photo"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(name)
}
