package models

// Rating classifies the execution quality of a shelf evaluation.
// A rating is always derived from (score, confidence, thresholds) —
// it is recomputed, never mutated in place.
type Rating string

const (
	RatingGood        Rating = "GOOD"
	RatingRegular     Rating = "REGULAR"
	RatingBad         Rating = "BAD"
	RatingNeedsReview Rating = "NEEDS_REVIEW"
)

// ValidRatings is the set of allowed rating values.
var ValidRatings = map[Rating]bool{
	RatingGood:        true,
	RatingRegular:     true,
	RatingBad:         true,
	RatingNeedsReview: true,
}

// SubScores holds the four independent 0-25 point components of a
// composite score. Their sum is always in [0,100].
type SubScores struct {
	Visibility       int `json:"visibility"`
	ShelfShare       int `json:"shelf_share"`
	PlacementQuality int `json:"placement_quality"`
	Availability     int `json:"availability"`
}

// Total returns the composite score (sum of the four sub-scores).
func (s SubScores) Total() int {
	return s.Visibility + s.ShelfShare + s.PlacementQuality + s.Availability
}

// InBounds reports whether every sub-score is within [0,25].
func (s SubScores) InBounds() bool {
	for _, v := range []int{s.Visibility, s.ShelfShare, s.PlacementQuality, s.Availability} {
		if v < 0 || v > 25 {
			return false
		}
	}
	return true
}

// ScoringThresholds parameterize the rating rubric. Values are sourced
// from the settings store with these defaults for missing keys.
type ScoringThresholds struct {
	GoodScore             float64 `json:"good_score"`
	BadScore              float64 `json:"bad_score"`
	GoodConfidence        float64 `json:"good_confidence"`
	NeedsReviewConfidence float64 `json:"needs_review_confidence"`
}

// Settings keys for the four threshold values.
const (
	SettingGoodScore             = "scoring.good_score"
	SettingBadScore              = "scoring.bad_score"
	SettingGoodConfidence        = "scoring.good_confidence"
	SettingNeedsReviewConfidence = "scoring.needs_review_confidence"
)

// DefaultScoringThresholds returns the rubric defaults used when no
// admin has written a threshold setting.
func DefaultScoringThresholds() ScoringThresholds {
	return ScoringThresholds{
		GoodScore:             75,
		BadScore:              45,
		GoodConfidence:        0.6,
		NeedsReviewConfidence: 0.35,
	}
}
