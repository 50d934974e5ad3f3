package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"gorm.io/gorm"
)

// ReceivingTask is one role's follow-up work item for a receiving record. The
// unique (receiving_record_id, role) index is the hard guarantee that repeated
// materialization can never create sibling duplicates.
type ReceivingTask struct {
	ID                int          `gorm:"primary_key" json:"id"`
	ReceivingRecordId int          `gorm:"index:idx_task_record_role,unique;not null" json:"receiving_record_id"`
	Role              Role         `gorm:"size:50;index:idx_task_record_role,unique;not null" json:"role_type"`
	Title             string       `gorm:"size:500;not null" json:"title"`
	Description       string       `gorm:"type:text" json:"description"`
	TaskStatus        TaskStatus   `gorm:"size:20;index;default:'pending'" json:"task_status"`
	Priority          TaskPriority `gorm:"size:20;default:'medium'" json:"priority"`
	AssignedUserId    *int         `gorm:"index" json:"assigned_user_id"`
	DueDate           *time.Time   `json:"due_date"`
	BlockedNote       *string      `gorm:"size:1000" json:"blocked_note"`

	ClearanceCertificateUrl *string `gorm:"size:1000" json:"clearance_certificate_url"`

	CompletionPhotoUrl *string    `gorm:"size:1000" json:"completion_photo_url"`
	CompletionNotes    *string    `gorm:"type:text" json:"completion_notes"`
	CompletedAt        *time.Time `json:"completed_at"`
	CompletedBy        *int       `json:"completed_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t ReceivingTask) GetId() int        { return t.ID }
func (t ReceivingTask) GetCursor() string { return t.CreatedAt.Format("2006-01-02 15:04:05") }

func GetReceivingTask(ctx context.Context, id int) (*ReceivingTask, error) {
	db := config.GetDB()
	var task ReceivingTask
	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeTaskNotFound, "task not found")
	}
	return &task, nil
}

func GetReceivingTaskForUpdate(tx *gorm.DB, id int) (*ReceivingTask, error) {
	var task ReceivingTask
	if err := tx.Clauses(forUpdateClause()).First(&task, id).Error; err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeTaskNotFound, "task not found")
	}
	return &task, nil
}

// TasksForRecord returns all sibling tasks of a receiving record.
func TasksForRecord(ctx context.Context, tx *gorm.DB, recordId int) ([]ReceivingTask, error) {
	dbCtx := tx
	if dbCtx == nil {
		dbCtx = config.GetDB().WithContext(ctx)
	}
	var tasks []ReceivingTask
	if err := dbCtx.Where("receiving_record_id = ?", recordId).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskByRole finds the sibling holding the given role.
func TaskByRole(tasks []ReceivingTask, role Role) *ReceivingTask {
	for i := range tasks {
		if tasks[i].Role == role {
			return &tasks[i]
		}
	}
	return nil
}

type TaskFilter struct {
	AssignedUserId *int
	RecordId       *int
	Role           *Role
	Status         *TaskStatus
	BranchId       *int
}

func PaginateReceivingTask(ctx context.Context, limit int, after *string, filter TaskFilter) ([]ReceivingTask, *PageInfo, error) {
	return FetchPageCompositeCursor[ReceivingTask](ctx, limit, after, "created_at", func(dbCtx *gorm.DB) *gorm.DB {
		if filter.AssignedUserId != nil {
			dbCtx = dbCtx.Where("assigned_user_id = ?", *filter.AssignedUserId)
		}
		if filter.RecordId != nil {
			dbCtx = dbCtx.Where("receiving_record_id = ?", *filter.RecordId)
		}
		if filter.Role != nil {
			dbCtx = dbCtx.Where("role = ?", *filter.Role)
		}
		if filter.Status != nil {
			dbCtx = dbCtx.Where("task_status = ?", *filter.Status)
		}
		if filter.BranchId != nil {
			dbCtx = dbCtx.Joins("JOIN receiving_records ON receiving_records.id = receiving_tasks.receiving_record_id").
				Where("receiving_records.branch_id = ?", *filter.BranchId)
		}
		return dbCtx
	})
}
