package scoring

import (
	"testing"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

func TestAssignRating(t *testing.T) {
	th := models.DefaultScoringThresholds()

	tests := []struct {
		name       string
		score      float64
		confidence float64
		expected   models.Rating
	}{
		{"high score high confidence", 90, 0.9, models.RatingGood},
		{"good boundary inclusive", 75, 0.6, models.RatingGood},
		{"just under good score", 74.999, 0.6, models.RatingRegular},
		{"bad requires strict less-than", 45, 0.6, models.RatingRegular},
		{"just under bad score", 44.999, 0.6, models.RatingBad},
		{"zero score confident", 0, 1.0, models.RatingBad},
		{"needs review floor is strict", 90, 0.35, models.RatingRegular},
		{"below needs review floor", 90, 0.349, models.RatingNeedsReview},
		{"zero confidence", 100, 0, models.RatingNeedsReview},
		{"confidence gate beats score gate", 10, 0.1, models.RatingNeedsReview},
		{"good score low confidence", 80, 0.5, models.RatingRegular},
		{"bad score low confidence", 30, 0.4, models.RatingRegular},
		{"midrange confident", 60, 0.8, models.RatingRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignRating(tt.score, tt.confidence, th)
			if got != tt.expected {
				t.Errorf("AssignRating(%v, %v) = %v, want %v", tt.score, tt.confidence, got, tt.expected)
			}
		})
	}
}

func TestAssignRating_TotalOverDomain(t *testing.T) {
	th := models.DefaultScoringThresholds()

	for score := 0.0; score <= 100; score += 5 {
		for conf := 0.0; conf <= 1.0; conf += 0.05 {
			got := AssignRating(score, conf, th)
			if !models.ValidRatings[got] {
				t.Fatalf("AssignRating(%v, %v) returned invalid rating %q", score, conf, got)
			}
			// Deterministic: same inputs, same output.
			if again := AssignRating(score, conf, th); again != got {
				t.Fatalf("AssignRating(%v, %v) not deterministic: %v then %v", score, conf, got, again)
			}
		}
	}
}

func TestAssignRating_CustomThresholds(t *testing.T) {
	th := models.ScoringThresholds{
		GoodScore:             90,
		BadScore:              60,
		GoodConfidence:        0.8,
		NeedsReviewConfidence: 0.5,
	}

	if got := AssignRating(85, 0.9, th); got != models.RatingRegular {
		t.Errorf("score below raised good threshold should be REGULAR, got %v", got)
	}
	if got := AssignRating(59, 0.9, th); got != models.RatingBad {
		t.Errorf("score below raised bad threshold should be BAD, got %v", got)
	}
	if got := AssignRating(95, 0.49, th); got != models.RatingNeedsReview {
		t.Errorf("confidence below raised floor should be NEEDS_REVIEW, got %v", got)
	}
}

func TestComposite(t *testing.T) {
	s := models.SubScores{Visibility: 20, ShelfShare: 15, PlacementQuality: 25, Availability: 10}
	if got := Composite(s); got != 70 {
		t.Errorf("Composite = %d, want 70", got)
	}

	full := models.SubScores{Visibility: 25, ShelfShare: 25, PlacementQuality: 25, Availability: 25}
	if got := Composite(full); got != 100 {
		t.Errorf("Composite of maxed sub-scores = %d, want 100", got)
	}
}

func TestSubScores_InBounds(t *testing.T) {
	ok := models.SubScores{Visibility: 0, ShelfShare: 25, PlacementQuality: 13, Availability: 7}
	if !ok.InBounds() {
		t.Error("expected in-bounds sub-scores to pass")
	}
	over := models.SubScores{Visibility: 26}
	if over.InBounds() {
		t.Error("expected sub-score above 25 to fail")
	}
	negative := models.SubScores{Availability: -1}
	if negative.InBounds() {
		t.Error("expected negative sub-score to fail")
	}
}
