package interfaces

import (
	"context"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// PhotoBlob is one captured photo attached to a scoring request or
// submission.
type PhotoBlob struct {
	Name        string
	ContentType string
	Data        []byte
}

// ShelfScoringRequest carries the images and store context for one vision
// scoring call.
type ShelfScoringRequest struct {
	StoreCode  string
	StoreName  string
	Segment    models.Segment
	BrandNames []string
	Photos     []PhotoBlob
}

// VisionClient scores shelf photos with a vision-capable model. Quota and
// rate-limit failures are returned as models.ErrQuotaExceeded (wrapped);
// callers surface those distinctly from generic failures.
type VisionClient interface {
	ScoreShelf(ctx context.Context, req *ShelfScoringRequest) (*models.AIReview, error)
	Close() error
}
