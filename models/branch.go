package models

import (
	"context"
	"fmt"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
)

type Branch struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	City      *string   `gorm:"size:100" json:"city"`
	Address   *string   `gorm:"size:500" json:"address"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BranchShiftConfig defines the local-time night window for a branch. A
// receiving record created inside the window routes its supervisory task to
// night_supervisor instead of branch_manager.
//
// NightStartMinute/NightEndMinute are minutes after local midnight. The window
// may wrap midnight (start > end, e.g. 22:00 to 06:00).
type BranchShiftConfig struct {
	ID               int       `gorm:"primary_key" json:"id"`
	BranchId         int       `gorm:"uniqueIndex;not null" json:"branch_id"`
	Timezone         string    `gorm:"size:64;not null;default:'Asia/Yangon'" json:"timezone"`
	NightStartMinute int       `gorm:"not null" json:"night_start_minute"`
	NightEndMinute   int       `gorm:"not null" json:"night_end_minute"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBranch struct {
	Name    string  `json:"name" binding:"required"`
	City    *string `json:"city"`
	Address *string `json:"address"`
}

func CreateBranch(ctx context.Context, input NewBranch) (*Branch, error) {
	db := config.GetDB()

	branch := Branch{
		Name:     input.Name,
		City:     input.City,
		Address:  input.Address,
		IsActive: true,
	}
	if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func GetBranch(ctx context.Context, id int) (*Branch, error) {
	return utils.GetResource[Branch](ctx, id)
}

type NewBranchShiftConfig struct {
	Timezone         string `json:"timezone" binding:"required"`
	NightStartMinute int    `json:"night_start_minute" binding:"min=0,max=1439"`
	NightEndMinute   int    `json:"night_end_minute" binding:"min=0,max=1439"`
}

// SetBranchShiftConfig creates or replaces the branch's night window. The
// timezone must resolve so supervisory routing never fails at record time.
func SetBranchShiftConfig(ctx context.Context, branchId int, input NewBranchShiftConfig) (*BranchShiftConfig, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Branch](ctx, branchId); err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeInvalidInput, "branch not found")
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidInput, "invalid timezone: "+input.Timezone)
	}

	var cfg BranchShiftConfig
	err := db.WithContext(ctx).Where("branch_id = ?", branchId).First(&cfg).Error
	if err != nil {
		cfg = BranchShiftConfig{
			BranchId:         branchId,
			Timezone:         input.Timezone,
			NightStartMinute: input.NightStartMinute,
			NightEndMinute:   input.NightEndMinute,
		}
		if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	updates := map[string]interface{}{
		"timezone":           input.Timezone,
		"night_start_minute": input.NightStartMinute,
		"night_end_minute":   input.NightEndMinute,
	}
	if err := db.WithContext(ctx).Model(&cfg).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func GetBranchShiftConfig(ctx context.Context, branchId int) (*BranchShiftConfig, error) {
	db := config.GetDB()
	var cfg BranchShiftConfig
	if err := db.WithContext(ctx).Where("branch_id = ?", branchId).First(&cfg).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &cfg, nil
}

// ResolveSupervisoryRole picks branch_manager or night_supervisor for a record
// created at the given instant. A branch without a shift config always routes
// to branch_manager.
func ResolveSupervisoryRole(ctx context.Context, branchId int, at time.Time) (Role, error) {
	cfg, err := GetBranchShiftConfig(ctx, branchId)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return RoleBranchManager, nil
		}
		return "", err
	}
	return resolveSupervisoryRoleAt(cfg, at)
}

func resolveSupervisoryRoleAt(cfg *BranchShiftConfig, at time.Time) (Role, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return "", fmt.Errorf("branch %d shift config has invalid timezone %q: %w", cfg.BranchId, cfg.Timezone, err)
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if inNightWindow(minute, cfg.NightStartMinute, cfg.NightEndMinute) {
		return RoleNightSupervisor, nil
	}
	return RoleBranchManager, nil
}

// inNightWindow treats [start, end) as half-open; a window with start > end
// wraps midnight. start == end means no night window at all.
func inNightWindow(minute, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
