// Package settings provides cached key/value configuration backed by an
// append-only settings log.
package settings

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/interfaces"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// cacheTTL bounds settings staleness: a full reload happens only when the
// cache is older than this window. Cross-process propagation of a settings
// change may lag up to this TTL — eventually consistent by design.
const cacheTTL = 30 * time.Second

// envPrefix for per-key environment overrides, e.g. the key
// "scoring.good_score" maps to SHELFGRADE_SETTING_SCORING_GOOD_SCORE.
const envPrefix = "SHELFGRADE_SETTING_"

// Service implements interfaces.SettingsService.
type Service struct {
	store  interfaces.InternalStore
	audit  interfaces.AuditStore
	logger *common.Logger

	mu       sync.RWMutex
	cache    map[string]string
	loadedAt time.Time
}

// NewService creates a settings service. The cache starts empty and is
// populated on first read.
func NewService(store interfaces.InternalStore, audit interfaces.AuditStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		audit:  audit,
		logger: logger,
		cache:  map[string]string{},
	}
}

// envKey converts a settings key to its environment override name.
func envKey(key string) string {
	k := strings.ToUpper(key)
	k = strings.NewReplacer(".", "_", "-", "_").Replace(k)
	return envPrefix + k
}

// ensureFresh reloads the cache from storage when it is older than
// cacheTTL. Storage read failures propagate: scoring thresholds change
// business outcomes, so serving silent defaults on a broken store is not
// acceptable.
func (s *Service) ensureFresh(ctx context.Context) error {
	s.mu.RLock()
	fresh := time.Since(s.loadedAt) < cacheTTL
	s.mu.RUnlock()
	if fresh {
		return nil
	}
	return s.Reload(ctx)
}

// Reload forces a full reload of all settings into the cache.
func (s *Service) Reload(ctx context.Context) error {
	values, err := s.store.LatestSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	s.mu.Lock()
	s.cache = values
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug().Int("keys", len(values)).Msg("Settings cache reloaded")
	return nil
}

// Get returns the value for key. Precedence: environment override, then
// the most recently written setting, then fallback.
func (s *Service) Get(ctx context.Context, key, fallback string) (string, error) {
	if v := os.Getenv(envKey(key)); v != "" {
		return v, nil
	}

	if err := s.ensureFresh(ctx); err != nil {
		return "", err
	}

	s.mu.RLock()
	v, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && v != "" {
		return v, nil
	}
	return fallback, nil
}

// Set durably appends a setting event and updates the cache write-through,
// so a read immediately after a local write observes the new value. Other
// keys are not invalidated.
func (s *Service) Set(ctx context.Context, key, value, actor string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("setting key is required")
	}

	event := &models.SettingEvent{
		ID:        uuid.New().String()[:8],
		Key:       key,
		Value:     value,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendSettingEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to persist setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	if s.audit != nil {
		record := &models.AuditRecord{
			Action:   models.AuditActionSettingChanged,
			EntityID: key,
			Actor:    actor,
			Detail:   value,
		}
		if err := s.audit.Append(ctx, record); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to audit setting change")
		}
	}

	s.logger.Info().Str("key", key).Str("actor", actor).Msg("Setting updated")
	return nil
}

// ScoringThresholds reads the four rubric keys, parsing each to a number
// with a per-key default for missing or non-numeric values. A storage
// failure propagates rather than returning defaults.
func (s *Service) ScoringThresholds(ctx context.Context) (models.ScoringThresholds, error) {
	defaults := models.DefaultScoringThresholds()
	out := defaults

	read := func(key string, def float64, dst *float64) error {
		raw, err := s.Get(ctx, key, "")
		if err != nil {
			return err
		}
		if raw == "" {
			*dst = def
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.logger.Warn().Str("key", key).Str("value", raw).Msg("Non-numeric threshold setting, using default")
			*dst = def
			return nil
		}
		*dst = v
		return nil
	}

	if err := read(models.SettingGoodScore, defaults.GoodScore, &out.GoodScore); err != nil {
		return out, err
	}
	if err := read(models.SettingBadScore, defaults.BadScore, &out.BadScore); err != nil {
		return out, err
	}
	if err := read(models.SettingGoodConfidence, defaults.GoodConfidence, &out.GoodConfidence); err != nil {
		return out, err
	}
	if err := read(models.SettingNeedsReviewConfidence, defaults.NeedsReviewConfidence, &out.NeedsReviewConfidence); err != nil {
		return out, err
	}
	return out, nil
}
