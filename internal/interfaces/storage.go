// Package interfaces defines service contracts for Shelfgrade
package interfaces

import (
	"context"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// StorageManager coordinates all server-side storage backends.
type StorageManager interface {
	InternalStore() InternalStore
	EvaluationStore() EvaluationStore
	StoreDirectory() StoreDirectory
	FileStore() FileStore
	AuditStore() AuditStore

	// Lifecycle
	Close() error
}

// InternalStore manages user accounts and the append-only settings log.
type InternalStore interface {
	// User accounts
	GetUser(ctx context.Context, userID string) (*models.InternalUser, error)
	GetUserByEmail(ctx context.Context, email string) (*models.InternalUser, error)
	SaveUser(ctx context.Context, user *models.InternalUser) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]*models.InternalUser, error)

	// Settings — append-only events; the current value of a key is its
	// most recent event.
	AppendSettingEvent(ctx context.Context, event *models.SettingEvent) error
	LatestSettings(ctx context.Context) (map[string]string, error)
	ListSettingEvents(ctx context.Context, key string, limit int) ([]*models.SettingEvent, error)

	Close() error
}

// EvaluationListOptions configures filtering and pagination for
// evaluation queries.
type EvaluationListOptions struct {
	StoreCode   string
	EvaluatorID string

	// Rating filters on the effective rating (override over AI). It is a
	// derived value, so stores ignore it; the evaluation service applies it.
	Rating models.Rating

	Since   *time.Time
	Before  *time.Time
	Page    int
	PerPage int
	Sort    string // captured_at_desc (default), captured_at_asc
}

// EvaluationStore manages persisted evaluations.
type EvaluationStore interface {
	Create(ctx context.Context, eval *models.Evaluation) error
	Get(ctx context.Context, id string) (*models.Evaluation, error)

	// GetByClientEvalID resolves the client-generated idempotency key to
	// an existing evaluation, or nil when the key is unknown.
	GetByClientEvalID(ctx context.Context, clientEvalID string) (*models.Evaluation, error)

	List(ctx context.Context, opts EvaluationListOptions) ([]*models.Evaluation, int, error) // items, total, error

	// SetOverride replaces the override fields; AI fields are untouched.
	SetOverride(ctx context.Context, id string, ov *models.Override) error
}

// StoreDirectory manages the retail-store reference data.
type StoreDirectory interface {
	// Upsert writes a store by customer code and reports whether the
	// record was newly created, so import counts are exact.
	Upsert(ctx context.Context, store *models.Store) (created bool, err error)
	Get(ctx context.Context, customerCode string) (*models.Store, error)
	List(ctx context.Context, region string) ([]*models.Store, error)
	Delete(ctx context.Context, customerCode string) error
}

// FileStore provides binary blob storage (photos) in the database.
type FileStore interface {
	SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, category, key string) ([]byte, string, error) // data, contentType, error
	DeleteFile(ctx context.Context, category, key string) error
	HasFile(ctx context.Context, category, key string) (bool, error)
}

// AuditStore records state-changing actions.
type AuditStore interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, entityID string, limit int) ([]*models.AuditRecord, error)
}

// QueueStore is the agent-local durable queue of offline submissions.
// Each device owns its queue exclusively; no cross-device locking exists.
type QueueStore interface {
	Put(ctx context.Context, obs *models.PendingObservation) error
	Get(ctx context.Context, clientEvalID string) (*models.PendingObservation, error)

	// List returns all queued entries in deterministic order
	// (created_at, then client id) so pass diagnostics are reproducible.
	List(ctx context.Context) ([]*models.PendingObservation, error)

	Update(ctx context.Context, obs *models.PendingObservation) error
	Delete(ctx context.Context, clientEvalID string) error
	Close() error
}
