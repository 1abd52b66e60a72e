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

// settingEventSelectFields aliases event_id to id for struct mapping.
const settingEventSelectFields = "event_id as id, key, value, actor, created_at"

// InternalStore manages user accounts and the append-only settings log.
type InternalStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewInternalStore creates a new InternalStore.
func NewInternalStore(db *surrealdb.DB, logger *common.Logger) *InternalStore {
	return &InternalStore{
		db:     db,
		logger: logger,
	}
}

func (s *InternalStore) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	user, err := surrealdb.Select[models.InternalUser](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if user == nil || user.UserID == "" {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func (s *InternalStore) GetUserByEmail(ctx context.Context, email string) (*models.InternalUser, error) {
	sql := "SELECT * FROM user WHERE email = $email LIMIT 1"
	vars := map[string]any{"email": email}

	results, err := surrealdb.Query[[]models.InternalUser](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, models.ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

func (s *InternalStore) SaveUser(ctx context.Context, user *models.InternalUser) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	sql := "UPSERT type::record('user', $id) CONTENT $user"
	vars := map[string]any{"id": user.UserID, "user": user}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.InternalUser](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save user after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := surrealdb.Delete[models.InternalUser](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *InternalStore) ListUsers(ctx context.Context) ([]*models.InternalUser, error) {
	list, err := surrealdb.Select[[]models.InternalUser](ctx, s.db, surrealmodels.Table("user"))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []*models.InternalUser
	if list != nil {
		for i := range *list {
			if (*list)[i].UserID != "" {
				users = append(users, &(*list)[i])
			}
		}
	}
	return users, nil
}

// AppendSettingEvent writes one settings event. Events are never updated
// in place; the log is the audit trail.
func (s *InternalStore) AppendSettingEvent(ctx context.Context, event *models.SettingEvent) error {
	if event.ID == "" {
		event.ID = fmt.Sprintf("se_%s", uuid.New().String()[:8])
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		event_id = $event_id, key = $key, value = $value,
		actor = $actor, created_at = $created_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("setting_event", event.ID),
		"event_id":   event.ID,
		"key":        event.Key,
		"value":      event.Value,
		"actor":      event.Actor,
		"created_at": event.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append setting event: %w", err)
	}
	return nil
}

// LatestSettings returns the current value of every key: the most recent
// event per key wins.
func (s *InternalStore) LatestSettings(ctx context.Context) (map[string]string, error) {
	sql := "SELECT " + settingEventSelectFields + " FROM setting_event ORDER BY created_at ASC, event_id ASC"

	results, err := surrealdb.Query[[]models.SettingEvent](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	out := make(map[string]string)
	if results != nil && len(*results) > 0 {
		for _, e := range (*results)[0].Result {
			out[e.Key] = e.Value
		}
	}
	return out, nil
}

func (s *InternalStore) ListSettingEvents(ctx context.Context, key string, limit int) ([]*models.SettingEvent, error) {
	if limit < 1 {
		limit = 50
	}

	where := ""
	vars := map[string]any{"limit": limit}
	if key != "" {
		where = " WHERE key = $key"
		vars["key"] = key
	}

	sql := "SELECT " + settingEventSelectFields + " FROM setting_event" + where +
		" ORDER BY created_at DESC, event_id DESC LIMIT $limit"

	results, err := surrealdb.Query[[]models.SettingEvent](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list setting events: %w", err)
	}

	var events []*models.SettingEvent
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			events = append(events, &(*results)[0].Result[i])
		}
	}
	return events, nil
}

func (s *InternalStore) Close() error {
	return nil
}

// Compile-time check
var _ interfaces.InternalStore = (*InternalStore)(nil)
