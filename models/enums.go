package models

import "errors"

// Role identifies the follow-up task owner for a receiving record.
// The five warehouse roles are fixed; branch_manager and night_supervisor are
// mutually exclusive per record (resolved from the branch shift window).
type Role string

const (
	RoleInventoryManager Role = "inventory_manager"
	RolePurchaseManager  Role = "purchase_manager"
	RoleAccountant       Role = "accountant"
	RoleShelfStocker     Role = "shelf_stocker"
	RoleBranchManager    Role = "branch_manager"
	RoleNightSupervisor  Role = "night_supervisor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleInventoryManager, RolePurchaseManager, RoleAccountant,
		RoleShelfStocker, RoleBranchManager, RoleNightSupervisor:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.New("invalid role: " + s)
	}
	return r, nil
}

// BaseRoles is the role set materialized for every receiving record; the
// supervisory role (branch_manager or night_supervisor) is appended per record.
var BaseRoles = []Role{
	RoleInventoryManager,
	RolePurchaseManager,
	RoleAccountant,
	RoleShelfStocker,
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// RequiredArtifact names the completion evidence a dependency rule demands of
// the prerequisite role's task.
type RequiredArtifact string

const (
	ArtifactCompleted          RequiredArtifact = "completed"
	ArtifactCompletedWithPhoto RequiredArtifact = "completed_with_photo"
)

// Notification outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
