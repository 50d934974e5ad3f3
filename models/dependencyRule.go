package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
)

const dependencyRuleCacheKey = "dependency_rules:all"
const dependencyRuleCacheExp = 10 * time.Minute

// DependencyRule declares that Role's task may not complete until the
// DependsOnRole task on the same receiving record carries RequiredArtifact.
type DependencyRule struct {
	ID               int              `gorm:"primary_key" json:"id"`
	Role             Role             `gorm:"size:50;index:idx_dependency_rule,unique;not null" json:"role"`
	DependsOnRole    Role             `gorm:"size:50;index:idx_dependency_rule,unique;not null" json:"depends_on_role"`
	RequiredArtifact RequiredArtifact `gorm:"size:50;not null;default:'completed'" json:"required_artifact"`
	IsActive         bool             `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDependencyRule struct {
	Role             Role             `json:"role" binding:"required"`
	DependsOnRole    Role             `json:"depends_on_role" binding:"required"`
	RequiredArtifact RequiredArtifact `json:"required_artifact"`
}

func CreateDependencyRule(ctx context.Context, input NewDependencyRule) (*DependencyRule, error) {
	db := config.GetDB()

	if !input.Role.Valid() || !input.DependsOnRole.Valid() {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidInput, "invalid role in dependency rule")
	}
	if input.Role == input.DependsOnRole {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidInput, "rule may not depend on its own role")
	}
	artifact := input.RequiredArtifact
	if artifact == "" {
		artifact = ArtifactCompleted
	}

	rule := DependencyRule{
		Role:             input.Role,
		DependsOnRole:    input.DependsOnRole,
		RequiredArtifact: artifact,
		IsActive:         true,
	}
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, NewAPIError(ErrorKindDuplicate, CodeInvalidInput, "dependency rule already exists")
		}
		return nil, err
	}
	config.RemoveRedisKey(dependencyRuleCacheKey)
	return &rule, nil
}

func AllDependencyRules(ctx context.Context) ([]DependencyRule, error) {
	var cached []DependencyRule
	if ok, err := config.GetRedisObject(dependencyRuleCacheKey, &cached); err == nil && ok {
		return cached, nil
	}

	db := config.GetDB()
	var rules []DependencyRule
	if err := db.WithContext(ctx).Where("is_active = ?", true).Find(&rules).Error; err != nil {
		return nil, err
	}
	config.SetRedisObject(dependencyRuleCacheKey, rules, dependencyRuleCacheExp)
	return rules, nil
}

// GetDependencyRules returns the active rules gating the given role.
func GetDependencyRules(ctx context.Context, role Role) ([]DependencyRule, error) {
	rules, err := AllDependencyRules(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]DependencyRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Role == role {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// Satisfies reports whether the prerequisite task meets the rule's artifact
// requirement. A nil task means the prerequisite was never materialized, which
// never satisfies a rule.
func (r DependencyRule) Satisfies(prerequisite *ReceivingTask) bool {
	if prerequisite == nil || prerequisite.TaskStatus != TaskStatusCompleted {
		return false
	}
	if r.RequiredArtifact == ArtifactCompletedWithPhoto {
		return prerequisite.CompletionPhotoUrl != nil && *prerequisite.CompletionPhotoUrl != ""
	}
	return true
}
