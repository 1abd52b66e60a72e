package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// ValidationError is a user-actionable rejection of a submitted payload.
// Nothing is persisted when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// segmentOrder fixes the validation order so error messages are
// deterministic.
var segmentOrder = []models.Segment{models.SegmentLubricants, models.SegmentBatteries, models.SegmentTires}

// validateSlots checks that the submitted slot numbers for every segment
// exactly equal the segment's required set — missing and extra slots are
// both rejected, naming the offending segment. The check is all-or-nothing:
// a submission must cover the full slot set of all segments.
func validateSlots(slots []models.SegmentPriceSlot) error {
	bySegment := map[models.Segment][]int{}
	for _, slot := range slots {
		if _, ok := models.RequiredSlots[slot.Segment]; !ok {
			return &ValidationError{Field: "price_slots", Message: fmt.Sprintf("unknown segment %q", slot.Segment)}
		}
		bySegment[slot.Segment] = append(bySegment[slot.Segment], slot.Slot)
	}

	for _, segment := range segmentOrder {
		required := models.RequiredSlots[segment]
		got := bySegment[segment]
		sort.Ints(got)
		if !equalInts(got, required) {
			return &ValidationError{
				Field:   "price_slots",
				Message: fmt.Sprintf("segment %s requires slots %v, got %v", segment, required, got),
			}
		}
	}
	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// deriveIndices fills in missing price indices as competitorPrice/ourPrice
// rounded to 2 decimal places. OurPrice <= 0 means the slot has no
// derivable index — not a division error. Returns a copy; the input is
// not mutated.
func deriveIndices(slots []models.SegmentPriceSlot) []models.SegmentPriceSlot {
	out := make([]models.SegmentPriceSlot, len(slots))
	copy(out, slots)

	for i := range out {
		if out[i].PriceIndex != nil {
			continue
		}
		if out[i].OurPrice <= 0 || out[i].CompetitorPrice <= 0 {
			continue
		}
		idx := math.Round(out[i].CompetitorPrice/out[i].OurPrice*100) / 100
		if math.IsInf(idx, 0) || math.IsNaN(idx) || idx < 0 {
			continue
		}
		out[i].PriceIndex = &idx
	}
	return out
}

// checkIndices enforces that every slot in the submission carries a
// finite, non-negative price index after derivation.
func checkIndices(slots []models.SegmentPriceSlot) error {
	for _, slot := range slots {
		if slot.PriceIndex == nil {
			return &ValidationError{
				Field:   "price_slots",
				Message: fmt.Sprintf("segment %s slot %d has no price index and none is derivable", slot.Segment, slot.Slot),
			}
		}
		if math.IsInf(*slot.PriceIndex, 0) || math.IsNaN(*slot.PriceIndex) || *slot.PriceIndex < 0 {
			return &ValidationError{
				Field:   "price_slots",
				Message: fmt.Sprintf("segment %s slot %d has an invalid price index", slot.Segment, slot.Slot),
			}
		}
	}
	return nil
}

// parseAIPayload decodes and validates an attached AI payload. Invalid
// payloads are not fatal to the submission: the return is the conservative
// NEEDS_REVIEW placeholder so the human capture survives an AI formatting
// failure. The bool reports whether the payload was accepted as-is.
func parseAIPayload(raw json.RawMessage) (*models.AIReview, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var review models.AIReview
	if err := json.Unmarshal(raw, &review); err != nil {
		return models.PlaceholderReview("malformed AI payload"), false
	}
	if err := review.Validate(); err != nil {
		return models.PlaceholderReview(err.Error()), false
	}
	return &review, true
}
