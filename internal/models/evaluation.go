package models

import "time"

// Segment is a product category with a fixed set of required
// price-comparison slots.
type Segment string

const (
	SegmentLubricants Segment = "LUBRICANTS"
	SegmentBatteries  Segment = "BATTERIES"
	SegmentTires      Segment = "TIRES"
)

// RequiredSlots maps each segment to its required slot numbers. A
// submission must carry exactly this set per segment — extra or missing
// slots are both rejected.
var RequiredSlots = map[Segment][]int{
	SegmentLubricants: {1, 2, 3, 4},
	SegmentBatteries:  {1, 2},
	SegmentTires:      {1},
}

// SegmentPriceSlot is one price-comparison observation within a segment.
// PriceIndex is derived as CompetitorPrice/OurPrice (2 decimal places)
// when not supplied explicitly; OurPrice <= 0 means no index is derivable.
type SegmentPriceSlot struct {
	Segment         Segment  `json:"segment"`
	Slot            int      `json:"slot"`
	CompetitorPrice float64  `json:"competitor_price,omitempty"`
	OurPrice        float64  `json:"our_price,omitempty"`
	PriceIndex      *float64 `json:"price_index,omitempty"`
	ProductName     string   `json:"product_name,omitempty"`
}

// Override records a manager's rating correction. Re-overriding replaces
// these fields wholesale; the AI fields are never touched.
type Override struct {
	Rating       Rating    `json:"rating"`
	Reason       string    `json:"reason"`
	OverriddenBy string    `json:"overridden_by"`
	OverriddenAt time.Time `json:"overridden_at"`
}

// Evaluation is one field capture: AI-assigned fields set at creation and
// immutable afterwards, an optional manager override added later, the
// segment price slots, photo keys, and provenance.
type Evaluation struct {
	ID           string             `json:"id"`
	ClientEvalID string             `json:"client_evaluation_id"`
	StoreCode    string             `json:"store_code"`
	EvaluatorID  string             `json:"evaluator_id"`
	CapturedAt   time.Time          `json:"captured_at"`
	Latitude     float64            `json:"latitude,omitempty"`
	Longitude    float64            `json:"longitude,omitempty"`
	AI           *AIReview          `json:"ai,omitempty"`
	Override     *Override          `json:"override,omitempty"`
	PriceSlots   []SegmentPriceSlot `json:"price_slots"`
	PhotoKeys    []string           `json:"photo_keys,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// EffectiveRating returns the manager's override rating if present,
// otherwise the AI-assigned rating. This precedence is the single rule
// applied everywhere ratings are displayed or aggregated.
func (e *Evaluation) EffectiveRating() Rating {
	if e.Override != nil && e.Override.Rating != "" {
		return e.Override.Rating
	}
	if e.AI != nil {
		return e.AI.Rating
	}
	return RatingNeedsReview
}
