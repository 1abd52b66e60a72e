package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// evaluationSelectFields aliases evaluation_id to id for struct mapping.
const evaluationSelectFields = `evaluation_id as id, client_evaluation_id, store_code, evaluator_id,
	captured_at, latitude, longitude, ai, override, price_slots, photo_keys, created_at`

// EvaluationStore implements interfaces.EvaluationStore using SurrealDB.
// Records are keyed by the client evaluation id, so a concurrent duplicate
// submission lands on the same record instead of creating a second one.
type EvaluationStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(db *surrealdb.DB, logger *common.Logger) *EvaluationStore {
	return &EvaluationStore{db: db, logger: logger}
}

func (s *EvaluationStore) Create(ctx context.Context, eval *models.Evaluation) error {
	if eval.ClientEvalID == "" {
		return fmt.Errorf("evaluation missing client evaluation id")
	}

	sql := `UPSERT $rid SET
		evaluation_id = $evaluation_id, client_evaluation_id = $client_evaluation_id,
		store_code = $store_code, evaluator_id = $evaluator_id, captured_at = $captured_at,
		latitude = $latitude, longitude = $longitude, ai = $ai, override = $override,
		price_slots = $price_slots, photo_keys = $photo_keys, created_at = $created_at`
	vars := map[string]any{
		"rid":                  surrealmodels.NewRecordID("evaluation", recordKey(eval.ClientEvalID)),
		"evaluation_id":        eval.ID,
		"client_evaluation_id": eval.ClientEvalID,
		"store_code":           eval.StoreCode,
		"evaluator_id":         eval.EvaluatorID,
		"captured_at":          eval.CapturedAt,
		"latitude":             eval.Latitude,
		"longitude":            eval.Longitude,
		"ai":                   eval.AI,
		"override":             eval.Override,
		"price_slots":          eval.PriceSlots,
		"photo_keys":           eval.PhotoKeys,
		"created_at":           eval.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

func (s *EvaluationStore) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	sql := "SELECT " + evaluationSelectFields + " FROM evaluation WHERE evaluation_id = $id LIMIT 1"
	vars := map[string]any{"id": id}

	results, err := surrealdb.Query[[]models.Evaluation](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *EvaluationStore) GetByClientEvalID(ctx context.Context, clientEvalID string) (*models.Evaluation, error) {
	sql := "SELECT " + evaluationSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("evaluation", recordKey(clientEvalID)),
	}

	results, err := surrealdb.Query[[]models.Evaluation](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation by client id: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *EvaluationStore) List(ctx context.Context, opts interfaces.EvaluationListOptions) ([]*models.Evaluation, int, error) {
	where := ""
	vars := map[string]any{}

	if opts.StoreCode != "" {
		where += " AND store_code = $store_code"
		vars["store_code"] = opts.StoreCode
	}
	if opts.EvaluatorID != "" {
		where += " AND evaluator_id = $evaluator_id"
		vars["evaluator_id"] = opts.EvaluatorID
	}
	if opts.Since != nil {
		where += " AND captured_at >= $since"
		vars["since"] = *opts.Since
	}
	if opts.Before != nil {
		where += " AND captured_at < $before"
		vars["before"] = *opts.Before
	}

	whereClause := ""
	if where != "" {
		whereClause = " WHERE " + where[5:]
	}

	// evaluation_id as tiebreaker for deterministic ordering when timestamps are equal
	orderBy := "ORDER BY captured_at DESC, evaluation_id DESC"
	if opts.Sort == "captured_at_asc" {
		orderBy = "ORDER BY captured_at ASC, evaluation_id ASC"
	}

	countSQL := "SELECT count() AS cnt FROM evaluation" + whereClause + " GROUP ALL"
	type countResult struct {
		Cnt int `json:"cnt"`
	}
	total := 0
	countResults, err := surrealdb.Query[[]countResult](ctx, s.db, countSQL, vars)
	if err == nil && countResults != nil && len(*countResults) > 0 && len((*countResults)[0].Result) > 0 {
		total = (*countResults)[0].Result[0].Cnt
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 500 {
		perPage = 500
	}
	offset := (page - 1) * perPage

	dataSQL := "SELECT " + evaluationSelectFields + " FROM evaluation" + whereClause + " " + orderBy + " LIMIT $limit START $start"
	vars["limit"] = perPage
	vars["start"] = offset

	results, err := surrealdb.Query[[]models.Evaluation](ctx, s.db, dataSQL, vars)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluations: %w", err)
	}

	items := make([]*models.Evaluation, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			items = append(items, &(*results)[0].Result[i])
		}
	}

	return items, total, nil
}

// SetOverride replaces the override fields wholesale. The AI fields are
// not part of the statement and cannot be touched by it.
func (s *EvaluationStore) SetOverride(ctx context.Context, id string, ov *models.Override) error {
	sql := "UPDATE evaluation SET override = $override WHERE evaluation_id = $id"
	vars := map[string]any{
		"id":       id,
		"override": ov,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set override: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.EvaluationStore = (*EvaluationStore)(nil)
