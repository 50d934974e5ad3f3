package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
	"gorm.io/gorm"
)

const taskTemplateCacheExp = 10 * time.Minute

// TaskTemplate holds the title/description blueprint for one role's follow-up
// task. Placeholders ({bill_number}, {vendor_id}, {bill_amount}, {branch_id})
// are interpolated at materialization time.
type TaskTemplate struct {
	ID                  int          `gorm:"primary_key" json:"id"`
	Role                Role         `gorm:"size:50;uniqueIndex;not null" json:"role"`
	TitleTemplate       string       `gorm:"size:500;not null" json:"title_template"`
	DescriptionTemplate string       `gorm:"type:text" json:"description_template"`
	Priority            TaskPriority `gorm:"size:20;default:'medium'" json:"priority"`
	DueInHours          int          `gorm:"default:48" json:"due_in_hours"`
	IsActive            bool         `gorm:"default:true" json:"is_active"`
	CreatedAt           time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaskTemplate struct {
	Role                Role         `json:"role" binding:"required"`
	TitleTemplate       string       `json:"title_template" binding:"required"`
	DescriptionTemplate string       `json:"description_template"`
	Priority            TaskPriority `json:"priority"`
	DueInHours          int          `json:"due_in_hours"`
}

func taskTemplateCacheKey(role Role) string {
	return "task_template:" + string(role)
}

func CreateTaskTemplate(ctx context.Context, input NewTaskTemplate) (*TaskTemplate, error) {
	db := config.GetDB()

	if !input.Role.Valid() {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidInput, "invalid role: "+string(input.Role))
	}
	priority := input.Priority
	if priority == "" {
		priority = TaskPriorityMedium
	}
	dueInHours := input.DueInHours
	if dueInHours <= 0 {
		dueInHours = 48
	}

	template := TaskTemplate{
		Role:                input.Role,
		TitleTemplate:       input.TitleTemplate,
		DescriptionTemplate: input.DescriptionTemplate,
		Priority:            priority,
		DueInHours:          dueInHours,
		IsActive:            true,
	}
	if err := db.WithContext(ctx).Create(&template).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, NewAPIError(ErrorKindDuplicate, CodeInvalidInput,
				"template already exists for role: "+string(input.Role))
		}
		return nil, err
	}
	config.RemoveRedisKey(taskTemplateCacheKey(template.Role))
	return &template, nil
}

func UpdateTaskTemplate(ctx context.Context, id int, input NewTaskTemplate) (*TaskTemplate, error) {
	db := config.GetDB()

	var template TaskTemplate
	if err := db.WithContext(ctx).First(&template, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	updates := map[string]interface{}{
		"title_template":       input.TitleTemplate,
		"description_template": input.DescriptionTemplate,
	}
	if input.Priority != "" {
		updates["priority"] = input.Priority
	}
	if input.DueInHours > 0 {
		updates["due_in_hours"] = input.DueInHours
	}
	if err := db.WithContext(ctx).Model(&template).Updates(updates).Error; err != nil {
		return nil, err
	}
	config.RemoveRedisKey(taskTemplateCacheKey(template.Role))
	return &template, nil
}

// GetTaskTemplateByRole is cache-first. Templates change rarely; a short TTL
// keeps materialization off the DB on the hot path.
func GetTaskTemplateByRole(ctx context.Context, role Role) (*TaskTemplate, error) {
	key := taskTemplateCacheKey(role)

	var cached TaskTemplate
	if ok, err := config.GetRedisObject(key, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB()
	var template TaskTemplate
	err := db.WithContext(ctx).Where("role = ? AND is_active = ?", role, true).First(&template).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	config.SetRedisObject(key, template, taskTemplateCacheExp)
	return &template, nil
}

func AllTaskTemplates(ctx context.Context) ([]TaskTemplate, error) {
	db := config.GetDB()
	var templates []TaskTemplate
	if err := db.WithContext(ctx).Order("role").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// TemplateContext carries the record fields available for interpolation.
type TemplateContext struct {
	BillNumber string
	VendorId   int
	BillAmount string
	BranchId   int
}

func NewTemplateContext(record *ReceivingRecord) TemplateContext {
	return TemplateContext{
		BillNumber: record.BillNumber,
		VendorId:   record.VendorId,
		BillAmount: record.BillAmount.StringFixed(2),
		BranchId:   record.BranchId,
	}
}

// Render interpolates the template placeholders. Unknown placeholders are left
// as-is rather than erased so a template typo stays visible to operators.
func (t *TaskTemplate) Render(tc TemplateContext) (title, description string) {
	replacer := strings.NewReplacer(
		"{bill_number}", tc.BillNumber,
		"{vendor_id}", fmt.Sprintf("%d", tc.VendorId),
		"{bill_amount}", tc.BillAmount,
		"{branch_id}", fmt.Sprintf("%d", tc.BranchId),
	)
	return replacer.Replace(t.TitleTemplate), replacer.Replace(t.DescriptionTemplate)
}
