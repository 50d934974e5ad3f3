package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/zayar/retailops_backend/models"
)

// DB-free planning tests: the planner works from an in-memory snapshot, so
// assignment, blocking and template rendering semantics are all pinned here.

func planInputFixture() taskPlanInput {
	roles := append(append([]models.Role{}, models.BaseRoles...), models.RoleBranchManager)

	templates := map[models.Role]*models.TaskTemplate{}
	for _, role := range roles {
		templates[role] = &models.TaskTemplate{
			Role:          role,
			TitleTemplate: string(role) + ": bill {bill_number}",
			Priority:      models.TaskPriorityMedium,
			DueInHours:    48,
		}
	}

	return taskPlanInput{
		RecordId:  1,
		Roles:     roles,
		Templates: templates,
		TemplateCtx: models.TemplateContext{
			BillNumber: "BILL-042",
			VendorId:   3,
			BillAmount: "22401.25",
			BranchId:   2,
		},
		AssigneesByRole: map[models.Role][]int{
			models.RoleInventoryManager: {11},
			models.RolePurchaseManager:  {12, 13},
			models.RoleAccountant:       {14},
			models.RoleShelfStocker:     {15},
			models.RoleBranchManager:    {16},
		},
		Rules: []models.DependencyRule{{
			Role:             models.RoleBranchManager,
			DependsOnRole:    models.RoleShelfStocker,
			RequiredArtifact: models.ArtifactCompletedWithPhoto,
		}},
		RulesApply:     true,
		CertificateUrl: "https://storage/cert.pdf",
		Now:            time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestPlanTasks_OneTaskPerRole(t *testing.T) {
	in := planInputFixture()
	planned, err := planTasks(in)
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	if len(planned) != len(in.Roles) {
		t.Fatalf("expected %d tasks, got %d", len(in.Roles), len(planned))
	}

	seen := map[models.Role]bool{}
	for _, task := range planned {
		if seen[task.Role] {
			t.Fatalf("duplicate task for role %s", task.Role)
		}
		seen[task.Role] = true
		if task.ReceivingRecordId != 1 {
			t.Fatalf("task for %s bound to wrong record %d", task.Role, task.ReceivingRecordId)
		}
	}
}

func TestPlanTasks_RendersTemplates(t *testing.T) {
	planned, err := planTasks(planInputFixture())
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	for _, task := range planned {
		want := string(task.Role) + ": bill BILL-042"
		if task.Title != want {
			t.Fatalf("expected title %q, got %q", want, task.Title)
		}
	}
}

func TestPlanTasks_PrimaryAssigneeByRank(t *testing.T) {
	planned, err := planTasks(planInputFixture())
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	pm := findPlanned(t, planned, models.RolePurchaseManager)
	if pm.AssignedUserId == nil || *pm.AssignedUserId != 12 {
		t.Fatalf("expected first-ranked assignee 12, got %v", pm.AssignedUserId)
	}
}

func TestPlanTasks_NoAssigneeStartsBlocked(t *testing.T) {
	in := planInputFixture()
	delete(in.AssigneesByRole, models.RoleAccountant)

	planned, err := planTasks(in)
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	acct := findPlanned(t, planned, models.RoleAccountant)
	if acct.AssignedUserId != nil {
		t.Fatalf("expected unassigned task, got user %d", *acct.AssignedUserId)
	}
	if acct.TaskStatus != models.TaskStatusBlocked {
		t.Fatalf("unassigned task must start blocked, got %s", acct.TaskStatus)
	}
	if acct.BlockedNote == nil || *acct.BlockedNote == "" {
		t.Fatalf("expected diagnostic note on unassigned task")
	}
}

func TestPlanTasks_DependentTaskStartsBlocked(t *testing.T) {
	planned, err := planTasks(planInputFixture())
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	bm := findPlanned(t, planned, models.RoleBranchManager)
	if bm.TaskStatus != models.TaskStatusBlocked {
		t.Fatalf("expected branch_manager task blocked, got %s", bm.TaskStatus)
	}
	if bm.BlockedNote == nil || *bm.BlockedNote == "" {
		t.Fatalf("blocked task must carry a note naming its blockers")
	}

	stocker := findPlanned(t, planned, models.RoleShelfStocker)
	if stocker.TaskStatus != models.TaskStatusPending {
		t.Fatalf("expected shelf_stocker pending, got %s", stocker.TaskStatus)
	}
}

func TestPlanTasks_RulesDisabledNothingBlocked(t *testing.T) {
	in := planInputFixture()
	in.RulesApply = false

	planned, err := planTasks(in)
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	for _, task := range planned {
		if task.TaskStatus == models.TaskStatusBlocked {
			t.Fatalf("no task may start blocked when rules are disabled, %s is", task.Role)
		}
	}
}

func TestPlanTasks_MissingTemplateFails(t *testing.T) {
	in := planInputFixture()
	delete(in.Templates, models.RoleShelfStocker)

	if _, err := planTasks(in); err == nil {
		t.Fatalf("expected error for missing template")
	}
}

func TestPlanTasks_DueDateFromTemplate(t *testing.T) {
	in := planInputFixture()
	in.Templates[models.RoleAccountant].DueInHours = 24

	planned, err := planTasks(in)
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	acct := findPlanned(t, planned, models.RoleAccountant)
	want := in.Now.Add(24 * time.Hour)
	if acct.DueDate == nil || !acct.DueDate.Equal(want) {
		t.Fatalf("expected due date %s, got %v", want, acct.DueDate)
	}
}

func TestPlanTasks_StampsCertificateOnEveryTask(t *testing.T) {
	in := planInputFixture()
	planned, err := planTasks(in)
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	for _, task := range planned {
		if task.ClearanceCertificateUrl == nil || *task.ClearanceCertificateUrl != in.CertificateUrl {
			t.Fatalf("task for %s missing certificate URL, got %v", task.Role, task.ClearanceCertificateUrl)
		}
	}
}

func TestMaterializeTasks_RequiresCertificateUrl(t *testing.T) {
	for _, url := range []string{"", "   "} {
		_, err := MaterializeTasks(context.Background(), 1, url)
		assertCode(t, err, models.CodeCertificateRequired)
	}
}

func findPlanned(t *testing.T, planned []models.ReceivingTask, role models.Role) models.ReceivingTask {
	t.Helper()
	for _, task := range planned {
		if task.Role == role {
			return task
		}
	}
	t.Fatalf("no planned task for role %s", role)
	return models.ReceivingTask{}
}
