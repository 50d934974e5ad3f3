package workflow

import (
	"testing"
	"time"

	"github.com/zayar/retailops_backend/models"
)

// DB-free validation ladder tests. They pin both the failure codes and the
// order the checks run in: ownership, then state, then documents, then
// dependency rules.

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func activeRecord() *models.ReceivingRecord {
	return &models.ReceivingRecord{
		ID:         1,
		BillNumber: "BILL-001",
		Status:     models.ReceivingRecordStatusActive,
	}
}

func fullyDocumentedRecord() *models.ReceivingRecord {
	r := activeRecord()
	r.ErpPurchaseInvoiceUploaded = true
	r.ErpPurchaseInvoiceUrl = strPtr("https://storage/erp.pdf")
	r.PrExcelFileUploaded = true
	r.PrExcelFileUrl = strPtr("https://storage/pr.xlsx")
	r.OriginalBillUploaded = true
	r.OriginalBillUrl = strPtr("https://storage/bill.pdf")
	r.ClearanceCertificateUrl = strPtr("https://storage/cert.pdf")
	return r
}

func taskFor(role models.Role, userId int) *models.ReceivingTask {
	return &models.ReceivingTask{
		ID:                10,
		ReceivingRecordId: 1,
		Role:              role,
		TaskStatus:        models.TaskStatusPending,
		AssignedUserId:    intPtr(userId),
	}
}

func assertCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", wantCode)
	}
	apiErr, ok := models.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("expected code %s, got %s (%s)", wantCode, apiErr.Code, apiErr.Message)
	}
}

func TestValidateTaskCompletion_NotAssigned(t *testing.T) {
	task := taskFor(models.RoleShelfStocker, 7)
	err := validateTaskCompletion(task, 99, activeRecord(), nil, nil, nil, true)
	assertCode(t, err, models.CodeNotAssignedToUser)

	task.AssignedUserId = nil
	err = validateTaskCompletion(task, 7, activeRecord(), nil, nil, nil, true)
	assertCode(t, err, models.CodeNotAssignedToUser)
}

func TestValidateTaskCompletion_AlreadyCompleted(t *testing.T) {
	task := taskFor(models.RoleShelfStocker, 7)
	task.TaskStatus = models.TaskStatusCompleted
	err := validateTaskCompletion(task, 7, activeRecord(), nil, nil, nil, true)
	assertCode(t, err, models.CodeTaskAlreadyCompleted)
}

func TestValidateTaskCompletion_VoidedRecord(t *testing.T) {
	record := activeRecord()
	record.Status = models.ReceivingRecordStatusVoided
	err := validateTaskCompletion(taskFor(models.RoleShelfStocker, 7), 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodeRecordVoided)
}

func TestValidateTaskCompletion_InventoryManagerDocumentLadder(t *testing.T) {
	task := taskFor(models.RoleInventoryManager, 7)
	record := activeRecord()

	err := validateTaskCompletion(task, 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodeErpInvoiceRequired)

	record.ErpPurchaseInvoiceUploaded = true
	err = validateTaskCompletion(task, 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodePrExcelRequired)

	record.PrExcelFileUploaded = true
	err = validateTaskCompletion(task, 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodeOriginalBillRequired)

	record.OriginalBillUploaded = true
	if err = validateTaskCompletion(task, 7, record, nil, nil, nil, true); err != nil {
		t.Fatalf("expected success with all documents uploaded, got %v", err)
	}
}

func TestValidateTaskCompletion_PurchaseManagerNeedsVerification(t *testing.T) {
	task := taskFor(models.RolePurchaseManager, 7)
	record := activeRecord()
	record.PrExcelFileUploaded = true

	err := validateTaskCompletion(task, 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodeVerificationNotFinished)

	schedule := &models.VendorPaymentSchedule{PrExcelVerified: false}
	err = validateTaskCompletion(task, 7, record, schedule, nil, nil, true)
	assertCode(t, err, models.CodeVerificationNotFinished)

	schedule.PrExcelVerified = true
	if err = validateTaskCompletion(task, 7, record, schedule, nil, nil, true); err != nil {
		t.Fatalf("expected success once verified, got %v", err)
	}
}

func TestValidateTaskCompletion_AccountantNeedsOriginalBill(t *testing.T) {
	task := taskFor(models.RoleAccountant, 7)
	record := activeRecord()

	err := validateTaskCompletion(task, 7, record, nil, nil, nil, true)
	assertCode(t, err, models.CodeOriginalBillRequired)

	record.OriginalBillUploaded = true
	if err = validateTaskCompletion(task, 7, record, nil, nil, nil, true); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateTaskCompletion_SupervisoryNeedsCertificate(t *testing.T) {
	for _, role := range []models.Role{models.RoleBranchManager, models.RoleNightSupervisor} {
		task := taskFor(role, 7)
		record := activeRecord()

		err := validateTaskCompletion(task, 7, record, nil, nil, nil, false)
		assertCode(t, err, models.CodeCertificateRequired)

		record.ClearanceCertificateUrl = strPtr("https://storage/cert.pdf")
		if err = validateTaskCompletion(task, 7, record, nil, nil, nil, false); err != nil {
			t.Fatalf("role %s: expected success with certificate, got %v", role, err)
		}
	}
}

func TestValidateTaskCompletion_DependencyOnPhotoArtifact(t *testing.T) {
	task := taskFor(models.RoleBranchManager, 7)
	record := fullyDocumentedRecord()
	rules := []models.DependencyRule{{
		Role:             models.RoleBranchManager,
		DependsOnRole:    models.RoleShelfStocker,
		RequiredArtifact: models.ArtifactCompletedWithPhoto,
	}}

	// Prerequisite pending.
	siblings := []models.ReceivingTask{{Role: models.RoleShelfStocker, TaskStatus: models.TaskStatusPending}}
	err := validateTaskCompletion(task, 7, record, nil, siblings, rules, true)
	assertCode(t, err, models.CodeDependenciesNotMet)

	// Completed, but without the photo the rule demands.
	siblings[0].TaskStatus = models.TaskStatusCompleted
	err = validateTaskCompletion(task, 7, record, nil, siblings, rules, true)
	assertCode(t, err, models.CodeDependenciesNotMet)

	siblings[0].CompletionPhotoUrl = strPtr("https://storage/photo.jpg")
	if err = validateTaskCompletion(task, 7, record, nil, siblings, rules, true); err != nil {
		t.Fatalf("expected success with photo present, got %v", err)
	}
}

func TestValidateTaskCompletion_GrandfatheredRecordSkipsRules(t *testing.T) {
	task := taskFor(models.RoleBranchManager, 7)
	record := fullyDocumentedRecord()
	rules := []models.DependencyRule{{
		Role:             models.RoleBranchManager,
		DependsOnRole:    models.RoleShelfStocker,
		RequiredArtifact: models.ArtifactCompletedWithPhoto,
	}}
	siblings := []models.ReceivingTask{{Role: models.RoleShelfStocker, TaskStatus: models.TaskStatusPending}}

	// rulesApply = false: the record predates the rules going live.
	if err := validateTaskCompletion(task, 7, record, nil, siblings, rules, false); err != nil {
		t.Fatalf("grandfathered record must skip dependency rules, got %v", err)
	}

	// Document prerequisites still apply regardless of grandfathering.
	record.ClearanceCertificateUrl = nil
	err := validateTaskCompletion(task, 7, record, nil, siblings, rules, false)
	assertCode(t, err, models.CodeCertificateRequired)
}

func TestDependencyRulesApplyPerTaskNotPerRecord(t *testing.T) {
	effective := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	settings := &models.EngineSettings{DependencyRulesEffectiveAt: &effective}

	// A task materialized after the rules went live is governed even when its
	// record predates them.
	newTask := taskFor(models.RoleBranchManager, 7)
	newTask.CreatedAt = effective.Add(time.Hour)
	if !dependencyRulesApplyTo(settings, newTask) {
		t.Fatalf("task created after the effective date must be governed by the rules")
	}

	oldTask := taskFor(models.RoleBranchManager, 7)
	oldTask.CreatedAt = effective.Add(-time.Hour)
	if dependencyRulesApplyTo(settings, oldTask) {
		t.Fatalf("task created before the effective date must be grandfathered")
	}
}

func TestValidateTaskStart(t *testing.T) {
	task := taskFor(models.RoleShelfStocker, 7)
	if err := validateTaskStart(task, 7); err != nil {
		t.Fatalf("pending assigned task must be claimable, got %v", err)
	}

	err := validateTaskStart(task, 99)
	assertCode(t, err, models.CodeNotAssignedToUser)

	task.TaskStatus = models.TaskStatusCompleted
	err = validateTaskStart(task, 7)
	assertCode(t, err, models.CodeTaskAlreadyCompleted)

	task.TaskStatus = models.TaskStatusBlocked
	task.BlockedNote = strPtr("waiting on: shelf_stocker")
	err = validateTaskStart(task, 7)
	assertCode(t, err, models.CodeDependenciesNotMet)

	// Re-claiming an in_progress task is a no-op.
	task.TaskStatus = models.TaskStatusInProgress
	if err := validateTaskStart(task, 7); err != nil {
		t.Fatalf("re-claiming an in_progress task must succeed, got %v", err)
	}
}

func TestValidateTaskCompletion_MissingPrerequisiteRoleIgnored(t *testing.T) {
	// night_supervisor rule on a record whose supervisory task is
	// branch_manager: the prerequisite role was never materialized, so the
	// rule cannot apply.
	task := taskFor(models.RoleBranchManager, 7)
	record := fullyDocumentedRecord()
	rules := []models.DependencyRule{{
		Role:             models.RoleBranchManager,
		DependsOnRole:    models.RoleNightSupervisor,
		RequiredArtifact: models.ArtifactCompleted,
	}}

	if err := validateTaskCompletion(task, 7, record, nil, nil, rules, true); err != nil {
		t.Fatalf("rule with unmaterialized prerequisite must not block, got %v", err)
	}
}
