package models

import (
	"fmt"
	"time"
)

// AIReview is the validated output of a vision scoring call. The shape is
// closed at the boundary: anything the model returns that does not conform
// is replaced by PlaceholderReview rather than propagated.
type AIReview struct {
	Rating          Rating    `json:"rating"`
	Score           float64   `json:"score"`
	Confidence      float64   `json:"confidence"`
	SubScores       SubScores `json:"sub_scores"`
	Summary         string    `json:"summary"`
	Why             []string  `json:"why"`
	Evidence        []string  `json:"evidence"`
	Recommendations []string  `json:"recommendations"`
	Model           string    `json:"model,omitempty"`
	ScoredAt        time.Time `json:"scored_at"`
	Placeholder     bool      `json:"placeholder,omitempty"`
}

// Validate checks the full evaluation-output schema: rating enum, score
// bounds, confidence bounds, sub-score bounds, score equal to the sub-score
// sum, 3-7 why bullets, at least one evidence item and one recommendation.
func (r *AIReview) Validate() error {
	if !ValidRatings[r.Rating] {
		return fmt.Errorf("invalid rating %q", r.Rating)
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %.2f out of range [0,100]", r.Score)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of range [0,1]", r.Confidence)
	}
	if !r.SubScores.InBounds() {
		return fmt.Errorf("sub-scores out of range [0,25]")
	}
	if int(r.Score) != r.SubScores.Total() || r.Score != float64(int(r.Score)) {
		return fmt.Errorf("score %.2f does not equal sub-score sum %d", r.Score, r.SubScores.Total())
	}
	if len(r.Why) < 3 || len(r.Why) > 7 {
		return fmt.Errorf("expected 3-7 why bullets, got %d", len(r.Why))
	}
	if len(r.Evidence) == 0 {
		return fmt.Errorf("at least one evidence item is required")
	}
	if len(r.Recommendations) == 0 {
		return fmt.Errorf("at least one recommendation is required")
	}
	return nil
}

// PlaceholderReview returns the conservative fallback result used when the
// AI call fails, times out, or returns a malformed payload. The human
// capture is never lost because of an AI formatting failure.
func PlaceholderReview(reason string) *AIReview {
	return &AIReview{
		Rating:      RatingNeedsReview,
		Score:       0,
		Confidence:  0,
		Summary:     "Automatic scoring unavailable: " + reason,
		ScoredAt:    time.Now(),
		Placeholder: true,
	}
}
