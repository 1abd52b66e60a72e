package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

func TestParseReviewJSON(t *testing.T) {
	raw := `{"rating":"GOOD","score":80,"confidence":0.9,"sub_scores":{"visibility":20,"shelf_share":20,"placement_quality":20,"availability":20},"summary":"ok","why":["a","b","c"],"evidence":["e"],"recommendations":["r"]}`

	review, err := parseReviewJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, models.RatingGood, review.Rating)
	assert.Equal(t, 80, review.SubScores.Total())
}

func TestParseReviewJSON_CodeFenced(t *testing.T) {
	raw := "```json\n{\"rating\":\"BAD\",\"score\":10}\n```"

	review, err := parseReviewJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, models.RatingBad, review.Rating)
}

func TestParseReviewJSON_Malformed(t *testing.T) {
	_, err := parseReviewJSON("the shelf looks fine to me")
	assert.Error(t, err)
}

func TestBuildScoringPrompt_IncludesContext(t *testing.T) {
	prompt := buildScoringPrompt(&interfaces.ShelfScoringRequest{
		StoreCode:  "C0042",
		StoreName:  "Main Street Auto",
		Segment:    models.SegmentLubricants,
		BrandNames: []string{"Acme", "Zenith"},
	})

	assert.Contains(t, prompt, "Main Street Auto")
	assert.Contains(t, prompt, "LUBRICANTS")
	assert.Contains(t, prompt, "Acme, Zenith")
	assert.Contains(t, prompt, `"sub_scores"`)
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")))
	assert.True(t, isQuotaError(errors.New("quota exceeded for metric")))
	assert.False(t, isQuotaError(errors.New("connection reset by peer")))
}
