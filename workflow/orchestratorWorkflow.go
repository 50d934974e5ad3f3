package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
)

const moduleOrchestrator = "OrchestratorWorkflow"

// taskPlanInput is the DB-free snapshot the planner works from. Everything is
// loaded up front so planning itself is pure and unit-testable.
type taskPlanInput struct {
	RecordId        int
	Roles           []models.Role
	Templates       map[models.Role]*models.TaskTemplate
	TemplateCtx     models.TemplateContext
	AssigneesByRole map[models.Role][]int
	Rules           []models.DependencyRule
	RulesApply      bool
	CertificateUrl  string
	Now             time.Time
}

// planTasks decides status, assignee and note for every role's task. Tasks
// whose dependency rules cannot be satisfied yet start blocked, and so do
// tasks with no active assignee; the diagnostic note names the gap so they
// surface in triage queues instead of vanishing.
func planTasks(in taskPlanInput) ([]models.ReceivingTask, error) {
	planned := make([]models.ReceivingTask, 0, len(in.Roles))

	for _, role := range in.Roles {
		template := in.Templates[role]
		if template == nil {
			return nil, models.NewAPIError(models.ErrorKindInvalidInput, models.CodeInvalidInput,
				"no task template for role: "+string(role))
		}

		title, description := template.Render(in.TemplateCtx)
		dueDate := in.Now.Add(time.Duration(template.DueInHours) * time.Hour)

		task := models.ReceivingTask{
			ReceivingRecordId: in.RecordId,
			Role:              role,
			Title:             title,
			Description:       description,
			TaskStatus:        models.TaskStatusPending,
			Priority:          template.Priority,
			DueDate:           &dueDate,
		}
		if in.CertificateUrl != "" {
			task.ClearanceCertificateUrl = &in.CertificateUrl
		}

		if assignees := in.AssigneesByRole[role]; len(assignees) > 0 {
			userId := assignees[0]
			task.AssignedUserId = &userId
		} else {
			task.TaskStatus = models.TaskStatusBlocked
			note := fmt.Sprintf("no active assignee for role %s", role)
			task.BlockedNote = &note
		}

		if in.RulesApply {
			if blockers := unmetPrerequisiteRoles(role, in.Roles, in.Rules); len(blockers) > 0 {
				task.TaskStatus = models.TaskStatusBlocked
				note := "waiting on: " + strings.Join(blockers, ", ")
				if task.BlockedNote != nil {
					note = *task.BlockedNote + "; " + note
				}
				task.BlockedNote = &note
			}
		}

		planned = append(planned, task)
	}
	return planned, nil
}

// unmetPrerequisiteRoles lists the prerequisite roles gating a freshly created
// task. At materialization time no sibling is completed yet, so every rule
// whose prerequisite role is being materialized counts as unmet.
func unmetPrerequisiteRoles(role models.Role, materialized []models.Role, rules []models.DependencyRule) []string {
	var blockers []string
	for _, rule := range rules {
		if rule.Role != role {
			continue
		}
		for _, m := range materialized {
			if m == rule.DependsOnRole {
				blockers = append(blockers, string(rule.DependsOnRole))
				break
			}
		}
	}
	return blockers
}

// MaterializeTasks creates the full role task set for a receiving record in
// one transaction, triggered by clearance certificate issuance. Calling it
// twice for the same record fails with DUPLICATE_TASKS; the unique
// (record, role) index backstops concurrent calls that pass the existence
// check simultaneously.
func MaterializeTasks(ctx context.Context, recordId int, certificateUrl string) ([]models.ReceivingTask, error) {
	if strings.TrimSpace(certificateUrl) == "" {
		return nil, models.NewAPIError(models.ErrorKindInvalidInput, models.CodeCertificateRequired,
			"clearance certificate URL is required")
	}

	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	record, err := models.GetReceivingRecordForUpdate(tx, recordId)
	if err != nil {
		return nil, err
	}
	if record.Status == models.ReceivingRecordStatusVoided {
		return nil, models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeRecordVoided, "receiving record is voided")
	}

	var existingCount int64
	if err := tx.Model(&models.ReceivingTask{}).Where("receiving_record_id = ?", recordId).Count(&existingCount).Error; err != nil {
		return nil, err
	}
	if existingCount > 0 {
		return nil, models.NewAPIError(models.ErrorKindDuplicate, models.CodeDuplicateTasks,
			"tasks already materialized for this receiving record")
	}

	if err := models.StampArtifact(tx, record, models.ArtifactClearanceCertificate, &certificateUrl); err != nil {
		config.LogError(logger, moduleOrchestrator, "MaterializeTasks", "stamp certificate", recordId, err)
		return nil, err
	}

	now := time.Now().UTC()
	supervisory, err := models.ResolveSupervisoryRole(ctx, record.BranchId, now)
	if err != nil {
		config.LogError(logger, moduleOrchestrator, "MaterializeTasks", "resolve supervisory role", recordId, err)
		return nil, err
	}
	roles := append(append([]models.Role{}, models.BaseRoles...), supervisory)

	templates := make(map[models.Role]*models.TaskTemplate, len(roles))
	assigneesByRole := make(map[models.Role][]int, len(roles))
	for _, role := range roles {
		template, err := models.GetTaskTemplateByRole(ctx, role)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				return nil, models.NewAPIError(models.ErrorKindInvalidInput, models.CodeInvalidInput,
					"no task template for role: "+string(role))
			}
			return nil, err
		}
		templates[role] = template

		assignees, err := models.ResolveAssignees(ctx, record.BranchId, role, now)
		if err != nil {
			return nil, err
		}
		assigneesByRole[role] = assignees
	}

	rules, err := models.AllDependencyRules(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := models.GetEngineSettings(ctx)
	if err != nil {
		return nil, err
	}

	planned, err := planTasks(taskPlanInput{
		RecordId:        recordId,
		Roles:           roles,
		Templates:       templates,
		TemplateCtx:     models.NewTemplateContext(record),
		AssigneesByRole: assigneesByRole,
		Rules:           rules,
		RulesApply:      settings.DependencyRulesApplyTo(now),
		CertificateUrl:  certificateUrl,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	for i := range planned {
		if err := tx.Create(&planned[i]).Error; err != nil {
			if models.IsDuplicateKeyErr(err) {
				return nil, models.NewAPIError(models.ErrorKindDuplicate, models.CodeDuplicateTasks,
					"tasks already materialized for this receiving record")
			}
			config.LogError(logger, moduleOrchestrator, "MaterializeTasks", "create task", planned[i], err)
			return nil, err
		}
	}

	if _, err := models.EnsurePaymentSchedule(ctx, tx, record); err != nil {
		config.LogError(logger, moduleOrchestrator, "MaterializeTasks", "ensure payment schedule", recordId, err)
		return nil, err
	}

	for i := range planned {
		task := planned[i]
		if task.AssignedUserId == nil {
			continue
		}
		err := models.QueueNotification(ctx, tx, *task.AssignedUserId,
			"New receiving task",
			fmt.Sprintf("%s (bill %s)", task.Title, record.BillNumber),
			"receiving_task", task.ID, map[string]string{"role": string(task.Role)})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return planned, nil
}
