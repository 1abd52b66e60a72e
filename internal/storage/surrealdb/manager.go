// Package surrealdb implements the server-side storage backends on
// SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	internalStore   *InternalStore
	evaluationStore *EvaluationStore
	storeDirectory  *StoreDirectory
	fileStore       *FileStore
	auditStore      *AuditStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// Define tables to ensure they exist (SurrealDB v3 errors on querying non-existent tables)
	tables := []string{"user", "setting_event", "evaluation", "store", "files", "audit"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &Manager{
		db:     db,
		logger: logger,
	}

	m.internalStore = NewInternalStore(db, logger)
	m.evaluationStore = NewEvaluationStore(db, logger)
	m.storeDirectory = NewStoreDirectory(db, logger)
	m.fileStore = NewFileStore(db, logger)
	m.auditStore = NewAuditStore(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) InternalStore() interfaces.InternalStore {
	return m.internalStore
}

func (m *Manager) EvaluationStore() interfaces.EvaluationStore {
	return m.evaluationStore
}

func (m *Manager) StoreDirectory() interfaces.StoreDirectory {
	return m.storeDirectory
}

func (m *Manager) FileStore() interfaces.FileStore {
	return m.fileStore
}

func (m *Manager) AuditStore() interfaces.AuditStore {
	return m.auditStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError reports whether the driver error means the record does
// not exist rather than a transport or query failure.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no record")
}

// recordKey sanitizes a natural key for use in a SurrealDB record ID.
func recordKey(key string) string {
	return strings.NewReplacer(".", "_", "/", "_", ":", "_", " ", "_").Replace(key)
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
