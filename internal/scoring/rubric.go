// Package scoring implements the rating rubric: mapping a composite score
// and model confidence to a categorical rating under configurable
// thresholds.
package scoring

import "github.com/shelfgrade/shelfgrade/internal/models"

// AssignRating maps (score, confidence) to a rating. Rules are evaluated
// in order; confidence gating takes precedence over score gating:
//
//  1. confidence below the needs-review floor -> NEEDS_REVIEW
//  2. score >= good and confidence >= good confidence -> GOOD
//  3. score < bad and confidence >= good confidence -> BAD
//  4. otherwise -> REGULAR
//
// Boundaries are inclusive exactly as written: >= for GOOD, strict < for
// BAD and NEEDS_REVIEW. Pure and total over score in [0,100], confidence
// in [0,1].
func AssignRating(score, confidence float64, t models.ScoringThresholds) models.Rating {
	switch {
	case confidence < t.NeedsReviewConfidence:
		return models.RatingNeedsReview
	case score >= t.GoodScore && confidence >= t.GoodConfidence:
		return models.RatingGood
	case score < t.BadScore && confidence >= t.GoodConfidence:
		return models.RatingBad
	default:
		return models.RatingRegular
	}
}

// Composite returns the composite score for a set of sub-scores.
func Composite(s models.SubScores) int {
	return s.Total()
}
