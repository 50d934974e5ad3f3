package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"gorm.io/gorm"
)

const engineSettingsCacheKey = "engine_settings"
const engineSettingsCacheExp = 5 * time.Minute

// EngineSettings is a single-row table. DependencyRulesEffectiveAt is the
// grandfathering boundary: records created before it skip dependency-rule
// checks at completion time (document prerequisites always apply).
type EngineSettings struct {
	ID                         int        `gorm:"primary_key" json:"id"`
	DependencyRulesEffectiveAt *time.Time `json:"dependency_rules_effective_at"`
	OutboxMaxAttempts          int        `gorm:"default:8" json:"outbox_max_attempts"`
	CreatedAt                  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetEngineSettings(ctx context.Context) (*EngineSettings, error) {
	var cached EngineSettings
	if ok, err := config.GetRedisObject(engineSettingsCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB()
	var settings EngineSettings
	err := db.WithContext(ctx).First(&settings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// No row yet means rules apply to everything.
			return &EngineSettings{OutboxMaxAttempts: 8}, nil
		}
		return nil, err
	}
	config.SetRedisObject(engineSettingsCacheKey, settings, engineSettingsCacheExp)
	return &settings, nil
}

// SetDependencyRulesEffectiveAt stamps (or moves) the grandfathering boundary.
func SetDependencyRulesEffectiveAt(ctx context.Context, at time.Time) (*EngineSettings, error) {
	db := config.GetDB()

	var settings EngineSettings
	err := db.WithContext(ctx).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		settings = EngineSettings{DependencyRulesEffectiveAt: &at, OutboxMaxAttempts: 8}
		if err := db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		config.RemoveRedisKey(engineSettingsCacheKey)
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&settings).Update("dependency_rules_effective_at", at).Error; err != nil {
		return nil, err
	}
	config.RemoveRedisKey(engineSettingsCacheKey)
	settings.DependencyRulesEffectiveAt = &at
	return &settings, nil
}

// DependencyRulesApplyTo reports whether dependency rules gate a task created
// at the given time. Tasks created before the effective date are
// grandfathered.
func (s *EngineSettings) DependencyRulesApplyTo(createdAt time.Time) bool {
	if s.DependencyRulesEffectiveAt == nil {
		return true
	}
	return !createdAt.Before(*s.DependencyRulesEffectiveAt)
}
