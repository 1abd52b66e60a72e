package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// auditSelectFields aliases audit_id to id for struct mapping.
const auditSelectFields = "audit_id as id, action, entity_id, actor, before, after, detail, created_at"

// AuditStore implements interfaces.AuditStore using SurrealDB. Records are
// append-only; nothing updates or deletes them.
type AuditStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *surrealdb.DB, logger *common.Logger) *AuditStore {
	return &AuditStore{db: db, logger: logger}
}

func (s *AuditStore) Append(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("au_%s", uuid.New().String()[:8])
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		audit_id = $audit_id, action = $action, entity_id = $entity_id, actor = $actor,
		before = $before, after = $after, detail = $detail, created_at = $created_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("audit", record.ID),
		"audit_id":   record.ID,
		"action":     record.Action,
		"entity_id":  record.EntityID,
		"actor":      record.Actor,
		"before":     string(record.Before),
		"after":      string(record.After),
		"detail":     record.Detail,
		"created_at": record.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, entityID string, limit int) ([]*models.AuditRecord, error) {
	if limit < 1 {
		limit = 50
	}

	where := ""
	vars := map[string]any{"limit": limit}
	if entityID != "" {
		where = " WHERE entity_id = $entity_id"
		vars["entity_id"] = entityID
	}

	sql := "SELECT " + auditSelectFields + " FROM audit" + where +
		" ORDER BY created_at DESC, audit_id DESC LIMIT $limit"

	results, err := surrealdb.Query[[]auditRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	var records []*models.AuditRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			records = append(records, (*results)[0].Result[i].toModel())
		}
	}
	return records, nil
}

// auditRow maps the stored shape, where before/after are JSON strings.
type auditRow struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id"`
	Actor     string    `json:"actor"`
	Before    string    `json:"before"`
	After     string    `json:"after"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *auditRow) toModel() *models.AuditRecord {
	rec := &models.AuditRecord{
		ID:        r.ID,
		Action:    r.Action,
		EntityID:  r.EntityID,
		Actor:     r.Actor,
		Detail:    r.Detail,
		CreatedAt: r.CreatedAt,
	}
	if r.Before != "" {
		rec.Before = []byte(r.Before)
	}
	if r.After != "" {
		rec.After = []byte(r.After)
	}
	return rec
}

// Compile-time check
var _ interfaces.AuditStore = (*AuditStore)(nil)
