package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
)

// RoleAssignment maps a user to a role at a branch. Rank orders candidates
// when several users hold the same role; the lowest rank is the primary
// assignee. EffectiveFrom/EffectiveTo bound the assignment in time so staff
// rotations do not require deleting history.
type RoleAssignment struct {
	ID            int        `gorm:"primary_key" json:"id"`
	UserId        int        `gorm:"index:idx_role_assignment_user;not null" json:"user_id"`
	Role          Role       `gorm:"size:50;index:idx_role_assignment_lookup;not null" json:"role"`
	BranchId      int        `gorm:"index:idx_role_assignment_lookup;not null" json:"branch_id"`
	Rank          int        `gorm:"not null;default:100" json:"rank"`
	EffectiveFrom *time.Time `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRoleAssignment struct {
	UserId        int        `json:"user_id" binding:"required"`
	Role          Role       `json:"role" binding:"required"`
	BranchId      int        `json:"branch_id" binding:"required"`
	Rank          int        `json:"rank"`
	EffectiveFrom *time.Time `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
}

func CreateRoleAssignment(ctx context.Context, input NewRoleAssignment) (*RoleAssignment, error) {
	db := config.GetDB()

	if !input.Role.Valid() {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidInput, "invalid role: "+string(input.Role))
	}
	rank := input.Rank
	if rank <= 0 {
		rank = 100
	}

	assignment := RoleAssignment{
		UserId:        input.UserId,
		Role:          input.Role,
		BranchId:      input.BranchId,
		Rank:          rank,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
	}
	if err := db.WithContext(ctx).Create(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ResolveAssignees returns user ids holding the role at the branch at the
// given instant, ordered by rank then id. The first entry is the primary
// assignee; an empty slice means the task must be created unassigned.
func ResolveAssignees(ctx context.Context, branchId int, role Role, at time.Time) ([]int, error) {
	db := config.GetDB()

	var assignments []RoleAssignment
	err := db.WithContext(ctx).
		Where("branch_id = ? AND role = ?", branchId, role).
		Where("effective_from IS NULL OR effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Order("rank asc, id asc").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	userIds := make([]int, 0, len(assignments))
	for _, a := range assignments {
		userIds = append(userIds, a.UserId)
	}
	return utils.UniqueSlice(userIds), nil
}
