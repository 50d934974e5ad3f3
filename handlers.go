package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/models/reports"
	"github.com/zayar/retailops_backend/utils"
	"github.com/zayar/retailops_backend/workflow"
)

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/receiving-records", createReceivingRecordHandler)
	api.GET("/receiving-records", listReceivingRecordsHandler)
	api.GET("/receiving-records/:id", getReceivingRecordHandler)
	api.POST("/receiving-records/:id/void", voidReceivingRecordHandler)
	api.POST("/receiving-records/:id/tasks", materializeTasksHandler)
	api.POST("/receiving-records/:id/artifacts", setArtifactHandler)
	api.GET("/receiving-records/:id/payment-schedule", getRecordPaymentScheduleHandler)

	api.GET("/tasks", listTasksHandler)
	api.GET("/tasks/:id", getTaskHandler)
	api.POST("/tasks/:id/start", startTaskHandler)
	api.POST("/tasks/:id/complete", completeTaskHandler)

	api.GET("/payment-schedules", listPaymentSchedulesHandler)
	api.GET("/payment-schedules/:id", getPaymentScheduleHandler)
	api.POST("/payment-schedules/:id/adjustments", applyAdjustmentHandler)
	api.POST("/payment-schedules/:id/verify-pr-excel", verifyPrExcelHandler)
	api.POST("/payment-schedules/:id/mark-paid", markPaidHandler)

	api.GET("/reports/payment-schedule", paymentScheduleReportHandler)
	api.GET("/reports/payment-schedule/export", paymentScheduleExportHandler)

	api.POST("/vendors", createVendorHandler)
	api.GET("/vendors", listVendorsHandler)
	api.GET("/vendors/:id", getVendorHandler)
	api.POST("/users", createUserHandler)
	api.GET("/users/:id", getUserHandler)
	api.POST("/branches", createBranchHandler)
	api.GET("/branches/:id", getBranchHandler)
	api.PUT("/branches/:id/shift-config", setBranchShiftConfigHandler)

	api.POST("/task-templates", createTaskTemplateHandler)
	api.GET("/task-templates", listTaskTemplatesHandler)
	api.PUT("/task-templates/:id", updateTaskTemplateHandler)
	api.POST("/dependency-rules", createDependencyRuleHandler)
	api.GET("/dependency-rules", listDependencyRulesHandler)
	api.POST("/role-assignments", createRoleAssignmentHandler)
	api.POST("/settings/dependency-rules-effective-at", setRulesEffectiveAtHandler)

	api.POST("/uploads/sign", signUploadHandler)
	api.POST("/tasks/:id/completion-photo", uploadCompletionPhotoHandler)

	// Ops tooling: inspect and requeue outbox rows that went DEAD/FAILED.
	r.GET("/internal/ops/outbox/:id", getOutboxRecordHandler)
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler)
}

// respondError maps engine failures onto HTTP statuses. APIError codes pass
// through verbatim so clients can key remediation text off error_code.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := models.AsAPIError(err); ok {
		c.JSON(httpStatusForKind(apiErr.Kind), apiErr)
		return
	}
	if err == utils.ErrorRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(verrs)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func httpStatusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindDuplicate, models.ErrorKindAlreadyCompleted, models.ErrorKindInvariantViolation:
		return http.StatusConflict
	case models.ErrorKindPermissionDenied:
		return http.StatusForbidden
	case models.ErrorKindPrerequisiteUnmet:
		return http.StatusUnprocessableEntity
	case models.ErrorKindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryIntPtr(c *gin.Context, name string) *int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func queryStrPtr(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func queryLimit(c *gin.Context) int {
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		return n
	}
	return 0
}

func createReceivingRecordHandler(c *gin.Context) {
	var input struct {
		models.NewReceivingRecord
		ClearanceCertificateUrl *string `json:"clearance_certificate_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	tx := mustDB().WithContext(ctx).Begin()
	defer tx.Rollback()

	record, err := models.CreateReceivingRecord(ctx, tx, input.NewReceivingRecord)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := tx.Commit().Error; err != nil {
		respondError(c, err)
		return
	}

	// Tasks follow the clearance certificate. Without one the record is
	// stored alone; POST /receiving-records/:id/tasks materializes later.
	if input.ClearanceCertificateUrl == nil || *input.ClearanceCertificateUrl == "" {
		c.JSON(http.StatusCreated, gin.H{"record": record, "tasks": nil})
		return
	}

	// Materialize in a second transaction: a planning failure must not lose
	// the receipt; the client can retry POST /receiving-records/:id/tasks.
	tasks, err := workflow.MaterializeTasks(ctx, record.ID, *input.ClearanceCertificateUrl)
	if err != nil {
		if models.IsErrorKind(err, models.ErrorKindDuplicate) {
			// A concurrent retry already materialized; return what exists.
			if existing, terr := models.TasksForRecord(ctx, nil, record.ID); terr == nil {
				c.JSON(http.StatusCreated, gin.H{"record": record, "tasks": existing})
				return
			}
		}
		c.JSON(http.StatusCreated, gin.H{"record": record, "tasks": nil, "task_error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": record, "tasks": tasks})
}

func listReceivingRecordsHandler(c *gin.Context) {
	var status *models.ReceivingRecordStatus
	if v := c.Query("status"); v != "" {
		s := models.ReceivingRecordStatus(v)
		status = &s
	}
	records, pageInfo, err := models.PaginateReceivingRecord(
		c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"), queryIntPtr(c, "branch_id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "page_info": pageInfo})
}

func getReceivingRecordHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	record, err := models.GetReceivingRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func voidReceivingRecordHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	record, err := models.VoidReceivingRecord(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func materializeTasksHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		ClearanceCertificateUrl string `json:"clearance_certificate_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	tasks, err := workflow.MaterializeTasks(c.Request.Context(), id, input.ClearanceCertificateUrl)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tasks": tasks})
}

func setArtifactHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Kind models.ArtifactKind `json:"kind" binding:"required"`
		Url  *string             `json:"url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	record, err := applyArtifact(c.Request.Context(), id, input.Kind, input.Url)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func getRecordPaymentScheduleHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	schedule, err := models.GetPaymentScheduleByRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func listTasksHandler(c *gin.Context) {
	filter := models.TaskFilter{
		AssignedUserId: queryIntPtr(c, "assigned_user_id"),
		RecordId:       queryIntPtr(c, "record_id"),
		BranchId:       queryIntPtr(c, "branch_id"),
	}
	if filter.BranchId == nil {
		// Fall back to the caller's branch header so shelf views stay scoped.
		if branchId, ok := utils.GetBranchIdFromContext(c.Request.Context()); ok && branchId > 0 {
			filter.BranchId = &branchId
		}
	}
	if v := c.Query("role"); v != "" {
		role, err := models.ParseRole(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Role = &role
	}
	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(v)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + v})
			return
		}
		filter.Status = &status
	}

	tasks, pageInfo, err := models.PaginateReceivingTask(c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "page_info": pageInfo})
}

func getTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	task, err := models.GetReceivingTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func startTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	task, err := workflow.StartTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func completeTaskHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input workflow.CompleteTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	task, err := workflow.CompleteTask(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func listPaymentSchedulesHandler(c *gin.Context) {
	filter := models.PaymentScheduleFilter{VendorId: queryIntPtr(c, "vendor_id")}
	if v := c.Query("status"); v != "" {
		status := models.PaymentStatus(v)
		filter.Status = &status
	}
	schedules, pageInfo, err := models.PaginatePaymentSchedule(c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "page_info": pageInfo})
}

func getPaymentScheduleHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	schedule, err := models.GetPaymentSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func applyAdjustmentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input workflow.AdjustmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	schedule, err := workflow.ApplyAdjustment(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func verifyPrExcelHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	schedule, err := models.VerifyPRExcel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func markPaidHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		PaymentReference string `json:"payment_reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	schedule, err := workflow.MarkPaid(c.Request.Context(), id, input.PaymentReference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func reportFilterFromQuery(c *gin.Context) reports.PaymentScheduleReportFilter {
	filter := reports.PaymentScheduleReportFilter{
		VendorId: queryIntPtr(c, "vendor_id"),
		BranchId: queryIntPtr(c, "branch_id"),
	}
	if v := c.Query("status"); v != "" {
		status := models.PaymentStatus(v)
		filter.Status = &status
	}
	if v := c.Query("from_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.FromDate = &t
		}
	}
	if v := c.Query("to_date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.ToDate = &t
		}
	}
	return filter
}

func paymentScheduleReportHandler(c *gin.Context) {
	summary, err := reports.GetPaymentScheduleReport(c.Request.Context(), reportFilterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func paymentScheduleExportHandler(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=payment-schedule.xlsx")
	if err := reports.ExportPaymentScheduleExcel(c.Request.Context(), c.Writer, reportFilterFromQuery(c)); err != nil {
		respondError(c, err)
	}
}

func createVendorHandler(c *gin.Context) {
	var input models.NewVendor
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	vendor, err := models.CreateVendor(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func listVendorsHandler(c *gin.Context) {
	vendors, pageInfo, err := models.PaginateVendor(c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors, "page_info": pageInfo})
}

func getVendorHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	vendor, err := models.GetVendor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func createUserHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	user, err := models.CreateUser(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func getUserHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	user, err := models.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func createBranchHandler(c *gin.Context) {
	var input models.NewBranch
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	branch, err := models.CreateBranch(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func getBranchHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	branch, err := models.GetBranch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

func setBranchShiftConfigHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewBranchShiftConfig
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	cfg, err := models.SetBranchShiftConfig(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func createTaskTemplateHandler(c *gin.Context) {
	var input models.NewTaskTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	template, err := models.CreateTaskTemplate(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func updateTaskTemplateHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewTaskTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	template, err := models.UpdateTaskTemplate(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func listTaskTemplatesHandler(c *gin.Context) {
	templates, err := models.AllTaskTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func createDependencyRuleHandler(c *gin.Context) {
	var input models.NewDependencyRule
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	rule, err := models.CreateDependencyRule(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func listDependencyRulesHandler(c *gin.Context) {
	if v := c.Query("role"); v != "" {
		role, err := models.ParseRole(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rules, err := models.GetDependencyRules(c.Request.Context(), role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rules)
		return
	}
	rules, err := models.AllDependencyRules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func createRoleAssignmentHandler(c *gin.Context) {
	var input models.NewRoleAssignment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	assignment, err := models.CreateRoleAssignment(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

func setRulesEffectiveAtHandler(c *gin.Context) {
	var input struct {
		EffectiveAt time.Time `json:"effective_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	settings, err := models.SetDependencyRulesEffectiveAt(c.Request.Context(), input.EffectiveAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func getOutboxRecordHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	record, err := models.GetNotification(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func outboxReplayHandler(c *gin.Context) {
	var req struct {
		RecordId int `json:"record_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	now := time.Now().UTC()
	err := mustDB().WithContext(c.Request.Context()).
		Model(&models.NotificationRecord{}).
		Where("id = ?", req.RecordId).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		}).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record_id":       req.RecordId,
		"publish_status":  models.OutboxPublishStatusFailed,
		"next_attempt_at": now.Format(time.RFC3339Nano),
	})
}
