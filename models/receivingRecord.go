package models

import (
	"context"
	"fmt"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReceivingRecordStatus string

const (
	ReceivingRecordStatusActive ReceivingRecordStatus = "active"
	ReceivingRecordStatusVoided ReceivingRecordStatus = "voided"
)

// ArtifactKind names a document slot on a receiving record. Upload flags and
// URLs are only ever mutated together through SetUploadArtifact so a true flag
// can never point at a missing document.
type ArtifactKind string

const (
	ArtifactErpPurchaseInvoice   ArtifactKind = "erp_purchase_invoice"
	ArtifactPrExcel              ArtifactKind = "pr_excel"
	ArtifactOriginalBill         ArtifactKind = "original_bill"
	ArtifactClearanceCertificate ArtifactKind = "clearance_certificate"
)

type ReceivingRecord struct {
	ID          int                   `gorm:"primary_key" json:"id"`
	BillNumber  string                `gorm:"size:100;uniqueIndex;not null" json:"bill_number"`
	VendorId    int                   `gorm:"index;not null" json:"vendor_id"`
	Vendor      *Vendor               `json:"vendor,omitempty"`
	BranchId    int                   `gorm:"index;not null" json:"branch_id"`
	Branch      *Branch               `json:"branch,omitempty"`
	BillAmount  decimal.Decimal       `gorm:"type:decimal(12,2);not null" json:"bill_amount"`
	BillDate    time.Time             `gorm:"not null" json:"bill_date"`
	Status      ReceivingRecordStatus `gorm:"size:20;index;default:'active'" json:"status"`
	ReceivedBy  int                   `gorm:"not null" json:"received_by"`
	Notes       *string               `gorm:"type:text" json:"notes"`

	ErpPurchaseInvoiceUploaded bool    `gorm:"default:false" json:"erp_purchase_invoice_uploaded"`
	ErpPurchaseInvoiceUrl      *string `gorm:"size:1000" json:"erp_purchase_invoice_url"`
	PrExcelFileUploaded        bool    `gorm:"default:false" json:"pr_excel_file_uploaded"`
	PrExcelFileUrl             *string `gorm:"size:1000" json:"pr_excel_file_url"`
	OriginalBillUploaded       bool    `gorm:"default:false" json:"original_bill_uploaded"`
	OriginalBillUrl            *string `gorm:"size:1000" json:"original_bill_url"`
	ClearanceCertificateUrl    *string `gorm:"size:1000" json:"clearance_certificate_url"`

	Tasks []ReceivingTask `gorm:"foreignKey:ReceivingRecordId" json:"tasks,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r ReceivingRecord) GetId() int { return r.ID }

type NewReceivingRecord struct {
	BillNumber string          `json:"bill_number" binding:"required"`
	VendorId   int             `json:"vendor_id" binding:"required"`
	BranchId   int             `json:"branch_id" binding:"required"`
	BillAmount decimal.Decimal `json:"bill_amount" binding:"required"`
	BillDate   *time.Time      `json:"bill_date"`
	Notes      *string         `json:"notes"`
}

// CreateReceivingRecord inserts the record inside tx. Task materialization is
// a separate step so a task planning failure can be reported without losing
// the receipt itself.
func CreateReceivingRecord(ctx context.Context, tx *gorm.DB, input NewReceivingRecord) (*ReceivingRecord, error) {
	if input.BillAmount.IsNegative() {
		return nil, NewAPIError(ErrorKindInvalidInput, CodeInvalidAmount, "bill amount must not be negative")
	}
	if err := utils.ValidateResourceId[Vendor](ctx, input.VendorId); err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeInvalidInput, "vendor not found")
	}
	if err := utils.ValidateResourceId[Branch](ctx, input.BranchId); err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeInvalidInput, "branch not found")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	billDate := time.Now().UTC()
	if input.BillDate != nil {
		billDate = *input.BillDate
	}

	record := ReceivingRecord{
		BillNumber: input.BillNumber,
		VendorId:   input.VendorId,
		BranchId:   input.BranchId,
		BillAmount: input.BillAmount.Round(2),
		BillDate:   billDate,
		Status:     ReceivingRecordStatusActive,
		ReceivedBy: userId,
		Notes:      input.Notes,
	}
	if err := tx.Create(&record).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, NewAPIError(ErrorKindDuplicate, CodeInvalidInput,
				"bill number already exists: "+input.BillNumber)
		}
		return nil, err
	}
	return &record, nil
}

func GetReceivingRecord(ctx context.Context, id int) (*ReceivingRecord, error) {
	db := config.GetDB()
	var record ReceivingRecord
	err := db.WithContext(ctx).
		Preload("Vendor").Preload("Branch").Preload("Tasks").
		First(&record, id).Error
	if err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeReceivingRecordNotFound, "receiving record not found")
	}
	return &record, nil
}

// GetReceivingRecordForUpdate locks the record row for the duration of tx.
func GetReceivingRecordForUpdate(tx *gorm.DB, id int) (*ReceivingRecord, error) {
	var record ReceivingRecord
	err := tx.Clauses(forUpdateClause()).First(&record, id).Error
	if err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeReceivingRecordNotFound, "receiving record not found")
	}
	return &record, nil
}

func PaginateReceivingRecord(ctx context.Context, limit int, after *string, branchId *int, status *ReceivingRecordStatus) ([]ReceivingRecord, *PageInfo, error) {
	return FetchPageIdCursor[ReceivingRecord](ctx, limit, after, func(dbCtx *gorm.DB) *gorm.DB {
		if branchId != nil {
			dbCtx = dbCtx.Where("branch_id = ?", *branchId)
		}
		if status != nil {
			dbCtx = dbCtx.Where("status = ?", *status)
		}
		return dbCtx.Preload("Vendor")
	})
}

// SetUploadArtifact is the single mutation path for document slots. It stores
// the URL and flips the matching uploaded flag in one UPDATE; clearing passes
// url = nil, which also resets the flag.
func SetUploadArtifact(ctx context.Context, recordId int, kind ArtifactKind, url *string) (*ReceivingRecord, error) {
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	record, err := GetReceivingRecordForUpdate(tx, recordId)
	if err != nil {
		return nil, err
	}
	if record.Status == ReceivingRecordStatusVoided {
		return nil, NewAPIError(ErrorKindInvariantViolation, CodeRecordVoided, "receiving record is voided")
	}

	if err := StampArtifact(tx, record, kind, url); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetReceivingRecord(ctx, recordId)
}

// StampArtifact writes one document slot inside the caller's tx, keeping the
// flag and URL in lockstep.
func StampArtifact(tx *gorm.DB, record *ReceivingRecord, kind ArtifactKind, url *string) error {
	uploaded := url != nil && *url != ""
	updates := map[string]interface{}{}
	switch kind {
	case ArtifactErpPurchaseInvoice:
		updates["erp_purchase_invoice_uploaded"] = uploaded
		updates["erp_purchase_invoice_url"] = url
	case ArtifactPrExcel:
		updates["pr_excel_file_uploaded"] = uploaded
		updates["pr_excel_file_url"] = url
	case ArtifactOriginalBill:
		updates["original_bill_uploaded"] = uploaded
		updates["original_bill_url"] = url
	case ArtifactClearanceCertificate:
		updates["clearance_certificate_url"] = url
	default:
		return NewAPIError(ErrorKindInvalidInput, CodeInvalidInput,
			fmt.Sprintf("unknown artifact kind: %s", kind))
	}
	return tx.Model(record).Updates(updates).Error
}

// VoidReceivingRecord marks the record voided and blocks its open tasks so
// they stop surfacing in work queues. Completed tasks keep their history.
func VoidReceivingRecord(ctx context.Context, id int, reason string) (*ReceivingRecord, error) {
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	record, err := GetReceivingRecordForUpdate(tx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == ReceivingRecordStatusVoided {
		return nil, NewAPIError(ErrorKindInvariantViolation, CodeRecordVoided, "receiving record is already voided")
	}

	note := "voided: " + reason
	if userName, ok := utils.GetUserNameFromContext(ctx); ok && userName != "" {
		note = "voided by " + userName + ": " + reason
	}
	updates := map[string]interface{}{"status": ReceivingRecordStatusVoided}
	if record.Notes != nil && *record.Notes != "" {
		note = *record.Notes + "\n" + note
	}
	updates["notes"] = note
	if err := tx.Model(record).Updates(updates).Error; err != nil {
		return nil, err
	}

	err = tx.Model(&ReceivingTask{}).
		Where("receiving_record_id = ? AND task_status <> ?", id, TaskStatusCompleted).
		Updates(map[string]interface{}{
			"task_status":  TaskStatusBlocked,
			"blocked_note": "receiving record voided",
		}).Error
	if err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetReceivingRecord(ctx, id)
}
