// Package app wires configuration, storage, clients, and services into
// the shared core used by cmd/shelfgrade-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shelfgrade/shelfgrade/internal/clients/gemini"
	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
	"github.com/shelfgrade/shelfgrade/internal/services/evaluation"
	"github.com/shelfgrade/shelfgrade/internal/services/settings"
	"github.com/shelfgrade/shelfgrade/internal/services/vision"
	"github.com/shelfgrade/shelfgrade/internal/storage/surrealdb"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	GeminiClient      *gemini.Client
	SettingsService   interfaces.SettingsService
	VisionService     interfaces.VisionService
	EvaluationService interfaces.EvaluationService
	StartupTime       time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Load configuration - check provided path, SHELFGRADE_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("SHELFGRADE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "shelfgrade.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/shelfgrade.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()

	var geminiClient *gemini.Client
	if config.Clients.Gemini.APIKey != "" {
		geminiClient, err = gemini.NewClient(ctx, config.Clients.Gemini.APIKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithRateLimit(config.Clients.Gemini.RateLimit),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client - submissions fall back to placeholder reviews")
			geminiClient = nil
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - server-side photo scoring will be unavailable")
	}

	var visionService interfaces.VisionService
	if geminiClient != nil {
		visionService = vision.NewService(geminiClient, config.Clients.Gemini.GetTimeout(), logger)
	}

	settingsService := settings.NewService(storageManager.InternalStore(), storageManager.AuditStore(), logger)
	evaluationService := evaluation.NewService(
		storageManager.EvaluationStore(),
		storageManager.FileStore(),
		storageManager.AuditStore(),
		visionService,
		storageManager.StoreDirectory(),
		logger,
	)

	a := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		GeminiClient:      geminiClient,
		SettingsService:   settingsService,
		VisionService:     visionService,
		EvaluationService: evaluationService,
		StartupTime:       startupStart,
	}

	if !config.IsProduction() {
		a.ensureDevAdmin(ctx)
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// ensureDevAdmin creates a development admin account so a fresh install is
// usable without manual user provisioning. Never called in production.
func (a *App) ensureDevAdmin(ctx context.Context) {
	store := a.Storage.InternalStore()
	if _, err := store.GetUser(ctx, "dev_admin"); err == nil {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("dev-password"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	user := &models.InternalUser{
		UserID:       "dev_admin",
		Email:        "admin@shelfgrade.local",
		Name:         "Dev Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}
	if err := store.SaveUser(ctx, user); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create dev admin user")
		return
	}
	a.Logger.Info().Str("user_id", user.UserID).Msg("Created dev admin user")
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.GeminiClient != nil {
		a.GeminiClient.Close()
		a.GeminiClient = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
