package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// StoreDirectory implements interfaces.StoreDirectory using SurrealDB.
// Records are keyed by customer code, the natural key for CSV imports.
type StoreDirectory struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewStoreDirectory creates a new StoreDirectory.
func NewStoreDirectory(db *surrealdb.DB, logger *common.Logger) *StoreDirectory {
	return &StoreDirectory{db: db, logger: logger}
}

// Upsert writes a store and reports whether the record was newly created.
// Prior existence is checked first so import counts are exact.
func (s *StoreDirectory) Upsert(ctx context.Context, store *models.Store) (bool, error) {
	if store.CustomerCode == "" {
		return false, fmt.Errorf("store missing customer code")
	}

	existing, err := s.Get(ctx, store.CustomerCode)
	if err != nil {
		return false, err
	}
	created := existing == nil

	now := time.Now()
	store.UpdatedAt = now
	if created || store.CreatedAt.IsZero() {
		if existing != nil && !existing.CreatedAt.IsZero() {
			store.CreatedAt = existing.CreatedAt
		} else {
			store.CreatedAt = now
		}
	}

	sql := `UPSERT $rid SET
		customer_code = $customer_code, name = $name, region = $region, address = $address,
		latitude = $latitude, longitude = $longitude, brand_names = $brand_names,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":           surrealmodels.NewRecordID("store", recordKey(store.CustomerCode)),
		"customer_code": store.CustomerCode,
		"name":          store.Name,
		"region":        store.Region,
		"address":       store.Address,
		"latitude":      store.Latitude,
		"longitude":     store.Longitude,
		"brand_names":   store.BrandNames,
		"created_at":    store.CreatedAt,
		"updated_at":    store.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return false, fmt.Errorf("failed to upsert store %s: %w", store.CustomerCode, err)
	}
	return created, nil
}

func (s *StoreDirectory) Get(ctx context.Context, customerCode string) (*models.Store, error) {
	rid := surrealmodels.NewRecordID("store", recordKey(customerCode))
	store, err := surrealdb.Select[models.Store](ctx, s.db, rid)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get store %s: %w", customerCode, err)
	}
	if store == nil || store.CustomerCode == "" {
		return nil, nil
	}
	return store, nil
}

func (s *StoreDirectory) List(ctx context.Context, region string) ([]*models.Store, error) {
	sql := "SELECT * FROM store ORDER BY customer_code ASC"
	vars := map[string]any{}
	if region != "" {
		sql = "SELECT * FROM store WHERE region = $region ORDER BY customer_code ASC"
		vars["region"] = region
	}

	results, err := surrealdb.Query[[]models.Store](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	var stores []*models.Store
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			stores = append(stores, &(*results)[0].Result[i])
		}
	}
	return stores, nil
}

func (s *StoreDirectory) Delete(ctx context.Context, customerCode string) error {
	rid := surrealmodels.NewRecordID("store", recordKey(customerCode))
	if _, err := surrealdb.Delete[models.Store](ctx, s.db, rid); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete store %s: %w", customerCode, err)
	}
	return nil
}

// Compile-time check
var _ interfaces.StoreDirectory = (*StoreDirectory)(nil)
