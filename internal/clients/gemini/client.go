// Package gemini provides a vision scoring client for the Google Gemini API
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

const (
	DefaultModel     = "gemini-2.0-flash"
	DefaultRateLimit = 5 // requests per second
	MaxPhotoBytes    = 20 * 1024 * 1024
)

// Client implements the VisionClient interface
type Client struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRateLimit sets the request rate limit in requests per second
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini vision client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:  genaiClient,
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// ScoreShelf scores a set of shelf photos and returns the structured
// review. The response is parsed but not validated here; shape policy
// lives in the vision service.
func (c *Client) ScoreShelf(ctx context.Context, req *interfaces.ShelfScoringRequest) (*models.AIReview, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(buildScoringPrompt(req))}
	for _, photo := range req.Photos {
		if len(photo.Data) == 0 || len(photo.Data) > MaxPhotoBytes {
			return nil, fmt.Errorf("photo %s has invalid size %d", photo.Name, len(photo.Data))
		}
		mimeType := photo.ContentType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(photo.Data, mimeType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("store_code", req.StoreCode).
		Int("photos", len(req.Photos)).
		Msg("Scoring shelf photos")

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if isQuotaError(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrQuotaExceeded, err)
		}
		return nil, fmt.Errorf("failed to score shelf: %w", err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}

	review, err := parseReviewJSON(text)
	if err != nil {
		return nil, err
	}
	review.Model = c.model
	review.ScoredAt = time.Now()

	return review, nil
}

// buildScoringPrompt creates the scoring prompt with store context
func buildScoringPrompt(req *interfaces.ShelfScoringRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a retail execution auditor. Score the attached shelf photos for product visibility, shelf share, placement quality, and availability.\n\n")

	if req.StoreName != "" {
		sb.WriteString(fmt.Sprintf("Store: %s (%s)\n", req.StoreName, req.StoreCode))
	} else if req.StoreCode != "" {
		sb.WriteString(fmt.Sprintf("Store code: %s\n", req.StoreCode))
	}
	if req.Segment != "" {
		sb.WriteString(fmt.Sprintf("Product segment: %s\n", req.Segment))
	}
	if len(req.BrandNames) > 0 {
		sb.WriteString(fmt.Sprintf("Our brands to assess: %s\n", strings.Join(req.BrandNames, ", ")))
	}

	sb.WriteString(`
Respond with a single JSON object, no prose:
{
  "rating": "GOOD" | "REGULAR" | "BAD" | "NEEDS_REVIEW",
  "score": <integer 0-100, must equal the sum of the four sub-scores>,
  "confidence": <number 0-1>,
  "sub_scores": {
    "visibility": <integer 0-25>,
    "shelf_share": <integer 0-25>,
    "placement_quality": <integer 0-25>,
    "availability": <integer 0-25>
  },
  "summary": "<one sentence>",
  "why": ["<3 to 7 short bullets>"],
  "evidence": ["<at least one observation tied to a photo>"],
  "recommendations": ["<at least one concrete action>"]
}`)

	return sb.String()
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// parseReviewJSON decodes the model's JSON response, tolerating markdown
// code fences some models wrap around JSON output.
func parseReviewJSON(text string) (*models.AIReview, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	var review models.AIReview
	if err := json.Unmarshal([]byte(text), &review); err != nil {
		return nil, fmt.Errorf("failed to parse scoring response: %w", err)
	}
	return &review, nil
}

// isQuotaError reports whether the API error indicates quota or rate-limit
// exhaustion.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}

// Ensure Client implements VisionClient
var _ interfaces.VisionClient = (*Client)(nil)
