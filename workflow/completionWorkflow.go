package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
	"gorm.io/gorm"
)

const moduleCompletion = "CompletionWorkflow"

type CompleteTaskInput struct {
	CompletionPhotoUrl *string `json:"completion_photo_url"`
	CompletionNotes    *string `json:"completion_notes"`
}

// validateTaskCompletion runs the full completion ladder against an in-memory
// snapshot. Order matters: ownership before state, state before documents,
// documents before dependencies, so the caller always gets the most actionable
// failure first.
func validateTaskCompletion(
	task *models.ReceivingTask,
	userId int,
	record *models.ReceivingRecord,
	schedule *models.VendorPaymentSchedule,
	siblings []models.ReceivingTask,
	rules []models.DependencyRule,
	rulesApply bool,
) error {
	if task.AssignedUserId == nil || *task.AssignedUserId != userId {
		return models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser,
			"task is not assigned to this user")
	}
	if task.TaskStatus == models.TaskStatusCompleted {
		return models.NewAPIError(models.ErrorKindAlreadyCompleted, models.CodeTaskAlreadyCompleted,
			"task is already completed")
	}
	if record.Status == models.ReceivingRecordStatusVoided {
		return models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeRecordVoided,
			"receiving record is voided")
	}

	if err := validateDocumentPrerequisites(task.Role, record, schedule); err != nil {
		return err
	}

	// Grandfathered tasks skip dependency rules; document prerequisites above
	// are never skipped.
	if rulesApply {
		for _, rule := range rules {
			if rule.Role != task.Role {
				continue
			}
			prerequisite := models.TaskByRole(siblings, rule.DependsOnRole)
			if prerequisite == nil {
				// Prerequisite role was not materialized for this record
				// (e.g. the other supervisory role); the rule does not apply.
				continue
			}
			if !rule.Satisfies(prerequisite) {
				return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeDependenciesNotMet,
					"prerequisite task not satisfied").
					WithDetail(fmt.Sprintf("role=%s required=%s", rule.DependsOnRole, rule.RequiredArtifact))
			}
		}
	}
	return nil
}

// validateDocumentPrerequisites enforces the per-role document gates. Each
// missing document fails with its own code so the operator knows exactly what
// to upload.
func validateDocumentPrerequisites(role models.Role, record *models.ReceivingRecord, schedule *models.VendorPaymentSchedule) error {
	switch role {
	case models.RoleInventoryManager:
		if !record.ErpPurchaseInvoiceUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeErpInvoiceRequired,
				"ERP purchase invoice must be uploaded")
		}
		if !record.PrExcelFileUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodePrExcelRequired,
				"PR excel file must be uploaded")
		}
		if !record.OriginalBillUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeOriginalBillRequired,
				"original bill must be uploaded")
		}
	case models.RolePurchaseManager:
		if !record.PrExcelFileUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodePrExcelRequired,
				"PR excel file must be uploaded")
		}
		if schedule == nil || !schedule.PrExcelVerified {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeVerificationNotFinished,
				"PR excel verification must be finished")
		}
	case models.RoleAccountant:
		if !record.OriginalBillUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeOriginalBillRequired,
				"original bill must be uploaded")
		}
	case models.RoleShelfStocker:
		// No document gate; the completion photo is optional here but gates
		// the supervisory task through the dependency rules.
	case models.RoleBranchManager, models.RoleNightSupervisor:
		if record.ClearanceCertificateUrl == nil || *record.ClearanceCertificateUrl == "" {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeCertificateRequired,
				"clearance certificate must be uploaded")
		}
	}
	return nil
}

// dependencyRulesApplyTo keys grandfathering off the task's creation time: a
// task materialized after the rules went live is governed even when its record
// predates them.
func dependencyRulesApplyTo(settings *models.EngineSettings, task *models.ReceivingTask) bool {
	return settings.DependencyRulesApplyTo(task.CreatedAt)
}

// CompleteTask validates and persists one task completion, then rechecks
// blocked siblings whose dependencies may have just been satisfied.
func CompleteTask(ctx context.Context, taskId int, input CompleteTaskInput) (*models.ReceivingTask, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser, "missing authenticated user")
	}

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	task, err := models.GetReceivingTaskForUpdate(tx, taskId)
	if err != nil {
		return nil, err
	}
	record, err := models.GetReceivingRecordForUpdate(tx, task.ReceivingRecordId)
	if err != nil {
		return nil, err
	}
	siblings, err := models.TasksForRecord(ctx, tx, task.ReceivingRecordId)
	if err != nil {
		return nil, err
	}

	schedule, err := scheduleForRecord(tx, record.ID)
	if err != nil {
		return nil, err
	}

	rules, err := models.AllDependencyRules(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := models.GetEngineSettings(ctx)
	if err != nil {
		return nil, err
	}

	err = validateTaskCompletion(task, userId, record, schedule, siblings, rules,
		dependencyRulesApplyTo(settings, task))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"task_status":  models.TaskStatusCompleted,
		"completed_at": now,
		"completed_by": userId,
		"blocked_note": nil,
	}
	if input.CompletionPhotoUrl != nil {
		updates["completion_photo_url"] = input.CompletionPhotoUrl
	}
	if input.CompletionNotes != nil {
		updates["completion_notes"] = input.CompletionNotes
	}
	if err := tx.Model(task).Updates(updates).Error; err != nil {
		config.LogError(logger, moduleCompletion, "CompleteTask", "persist completion", taskId, err)
		return nil, err
	}

	// Refresh the in-memory snapshot before rechecking siblings.
	task.TaskStatus = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.CompletedBy = &userId
	if input.CompletionPhotoUrl != nil {
		task.CompletionPhotoUrl = input.CompletionPhotoUrl
	}
	for i := range siblings {
		if siblings[i].ID == task.ID {
			siblings[i] = *task
		}
	}

	if err := unblockSatisfiedSiblings(ctx, tx, record, siblings, rules); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.GetReceivingTask(ctx, taskId)
}

// validateTaskStart gates the pending to in_progress claim. Re-claiming an
// in_progress task is a no-op rather than an error.
func validateTaskStart(task *models.ReceivingTask, userId int) error {
	if task.AssignedUserId == nil || *task.AssignedUserId != userId {
		return models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser,
			"task is not assigned to this user")
	}
	switch task.TaskStatus {
	case models.TaskStatusCompleted:
		return models.NewAPIError(models.ErrorKindAlreadyCompleted, models.CodeTaskAlreadyCompleted,
			"task is already completed")
	case models.TaskStatusBlocked:
		return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeDependenciesNotMet,
			"task is blocked").WithDetail(utils.DereferencePtr(task.BlockedNote))
	}
	return nil
}

// StartTask moves a pending task to in_progress for its assignee.
func StartTask(ctx context.Context, taskId int) (*models.ReceivingTask, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser, "missing authenticated user")
	}

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	task, err := models.GetReceivingTaskForUpdate(tx, taskId)
	if err != nil {
		return nil, err
	}
	if err := validateTaskStart(task, userId); err != nil {
		return nil, err
	}
	if task.TaskStatus != models.TaskStatusInProgress {
		if err := tx.Model(task).Update("task_status", models.TaskStatusInProgress).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.GetReceivingTask(ctx, taskId)
}

// scheduleForRecord loads the payable row if it exists; records materialized
// before their schedule (or with materialization half-done) get nil.
func scheduleForRecord(tx *gorm.DB, recordId int) (*models.VendorPaymentSchedule, error) {
	var schedule models.VendorPaymentSchedule
	err := tx.Where("receiving_record_id = ?", recordId).First(&schedule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// unblockSatisfiedSiblings flips blocked siblings back to pending once every
// dependency rule gating them is satisfied, and notifies their assignees.
func unblockSatisfiedSiblings(ctx context.Context, tx *gorm.DB, record *models.ReceivingRecord, siblings []models.ReceivingTask, rules []models.DependencyRule) error {
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.TaskStatus != models.TaskStatusBlocked {
			continue
		}
		// Unassigned tasks stay blocked until someone picks them up.
		if sibling.AssignedUserId == nil {
			continue
		}

		satisfied := true
		for _, rule := range rules {
			if rule.Role != sibling.Role {
				continue
			}
			prerequisite := models.TaskByRole(siblings, rule.DependsOnRole)
			if prerequisite == nil {
				continue
			}
			if !rule.Satisfies(prerequisite) {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}

		err := tx.Model(sibling).Updates(map[string]interface{}{
			"task_status":  models.TaskStatusPending,
			"blocked_note": nil,
		}).Error
		if err != nil {
			return err
		}

		if sibling.AssignedUserId != nil {
			err = models.QueueNotification(ctx, tx, *sibling.AssignedUserId,
				"Receiving task unblocked",
				fmt.Sprintf("%s (bill %s) is ready to work on.", sibling.Title, record.BillNumber),
				"receiving_task", sibling.ID, map[string]string{"role": string(sibling.Role)})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
