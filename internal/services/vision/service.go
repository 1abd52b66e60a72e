// Package vision orchestrates AI shelf scoring: bounded call timeout,
// strict response validation, and the conservative placeholder fallback.
package vision

import (
	"context"
	"errors"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// Service wraps a VisionClient with the policy the submission path relies
// on: every call is bounded by a timeout, every response is validated
// against the full output schema, and shape or timeout failures are
// downgraded to the NEEDS_REVIEW placeholder. Only quota errors propagate
// so the caller can surface them distinctly.
type Service struct {
	client  interfaces.VisionClient
	timeout time.Duration
	logger  *common.Logger
}

// NewService creates a vision service around a scoring client.
func NewService(client interfaces.VisionClient, timeout time.Duration, logger *common.Logger) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Score runs one scoring call. The returned review is always usable: a
// malformed model response or a timeout yields the placeholder, not an
// error. Quota exhaustion is the one error callers see.
func (s *Service) Score(ctx context.Context, req *interfaces.ShelfScoringRequest) (*models.AIReview, error) {
	if len(req.Photos) == 0 {
		return models.PlaceholderReview("no photos attached"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	review, err := s.client.ScoreShelf(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			s.logger.Warn().
				Str("store_code", req.StoreCode).
				Dur("elapsed", elapsed).
				Msg("Vision quota exceeded")
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().
				Str("store_code", req.StoreCode).
				Dur("timeout", s.timeout).
				Msg("Vision call timed out")
			return models.PlaceholderReview("scoring timed out"), nil
		}
		s.logger.Warn().Err(err).
			Str("store_code", req.StoreCode).
			Msg("Vision call failed")
		return models.PlaceholderReview(err.Error()), nil
	}

	if review == nil {
		return models.PlaceholderReview("empty model response"), nil
	}
	if err := review.Validate(); err != nil {
		s.logger.Warn().Err(err).
			Str("store_code", req.StoreCode).
			Msg("Vision response failed validation")
		return models.PlaceholderReview(err.Error()), nil
	}

	if review.ScoredAt.IsZero() {
		review.ScoredAt = time.Now()
	}

	s.logger.Debug().
		Str("store_code", req.StoreCode).
		Str("rating", string(review.Rating)).
		Float64("confidence", review.Confidence).
		Dur("elapsed", elapsed).
		Msg("Shelf scored")

	return review, nil
}
