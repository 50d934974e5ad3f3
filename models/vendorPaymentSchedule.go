package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// VendorPaymentSchedule is the payable ledger row for one receiving record.
// FinalBillAmount is always recomputed from the bill amount minus the three
// deduction terms; it is never edited directly.
type VendorPaymentSchedule struct {
	ID                int              `gorm:"primary_key" json:"id"`
	ReceivingRecordId int              `gorm:"uniqueIndex;not null" json:"receiving_record_id"`
	ReceivingRecord   *ReceivingRecord `json:"receiving_record,omitempty"`
	VendorId          int              `gorm:"index;not null" json:"vendor_id"`
	Vendor            *Vendor          `json:"vendor,omitempty"`

	BillAmount      decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"bill_amount"`
	DiscountAmount  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	DiscountNotes   *string          `gorm:"size:500" json:"discount_notes"`
	DiscountRefNo   *string          `gorm:"size:100" json:"discount_reference_number"`
	GrrAmount       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"grr_amount"`
	GrrNotes        *string          `gorm:"size:500" json:"grr_notes"`
	GrrRefNo        *string          `gorm:"size:100" json:"grr_reference_number"`
	PriAmount       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"pri_amount"`
	PriNotes        *string          `gorm:"size:500" json:"pri_notes"`
	PriRefNo        *string          `gorm:"size:100" json:"pri_reference_number"`
	FinalBillAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"final_bill_amount"`

	PrExcelVerified     bool       `gorm:"default:false" json:"pr_excel_verified"`
	PrExcelVerifiedBy   *int       `json:"pr_excel_verified_by"`
	PrExcelVerifiedDate *time.Time `json:"pr_excel_verified_date"`

	PaymentStatus    PaymentStatus `gorm:"size:20;index;default:'pending'" json:"payment_status"`
	PaidAt           *time.Time    `json:"paid_at"`
	PaidBy           *int          `json:"paid_by"`
	PaymentReference *string       `gorm:"size:100" json:"payment_reference"`

	Adjustments []PaymentAdjustment `gorm:"foreignKey:PaymentScheduleId" json:"adjustments,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s VendorPaymentSchedule) GetId() int { return s.ID }

// PaymentAdjustment is the append-only audit trail of deduction changes. Rows
// are never updated or deleted.
type PaymentAdjustment struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PaymentScheduleId int             `gorm:"index;not null" json:"payment_schedule_id"`
	AdjustedBy        int             `gorm:"not null" json:"adjusted_by"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	GrrAmount         decimal.Decimal `gorm:"type:decimal(12,2)" json:"grr_amount"`
	PriAmount         decimal.Decimal `gorm:"type:decimal(12,2)" json:"pri_amount"`
	FinalBillAmount   decimal.Decimal `gorm:"type:decimal(12,2)" json:"final_bill_amount"`
	Notes             *string         `gorm:"size:500" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// EnsurePaymentSchedule creates the payable row for a record if it does not
// exist yet. Safe to call repeatedly; the unique index on receiving_record_id
// resolves races between concurrent callers.
func EnsurePaymentSchedule(ctx context.Context, tx *gorm.DB, record *ReceivingRecord) (*VendorPaymentSchedule, error) {
	var existing VendorPaymentSchedule
	err := tx.Where("receiving_record_id = ?", record.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	schedule := VendorPaymentSchedule{
		ReceivingRecordId: record.ID,
		VendorId:          record.VendorId,
		BillAmount:        record.BillAmount,
		FinalBillAmount:   record.BillAmount,
		PaymentStatus:     PaymentStatusPending,
	}
	if err := tx.Create(&schedule).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			if err := tx.Where("receiving_record_id = ?", record.ID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func GetPaymentSchedule(ctx context.Context, id int) (*VendorPaymentSchedule, error) {
	db := config.GetDB()
	var schedule VendorPaymentSchedule
	err := db.WithContext(ctx).
		Preload("Vendor").Preload("ReceivingRecord").
		Preload("Adjustments", func(dbCtx *gorm.DB) *gorm.DB { return dbCtx.Order("id") }).
		First(&schedule, id).Error
	if err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodePaymentNotFound, "payment schedule not found")
	}
	return &schedule, nil
}

func GetPaymentScheduleByRecord(ctx context.Context, recordId int) (*VendorPaymentSchedule, error) {
	db := config.GetDB()
	var schedule VendorPaymentSchedule
	err := db.WithContext(ctx).Where("receiving_record_id = ?", recordId).First(&schedule).Error
	if err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodePaymentNotFound, "payment schedule not found")
	}
	return &schedule, nil
}

func GetPaymentScheduleForUpdate(tx *gorm.DB, id int) (*VendorPaymentSchedule, error) {
	var schedule VendorPaymentSchedule
	if err := tx.Clauses(forUpdateClause()).First(&schedule, id).Error; err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodePaymentNotFound, "payment schedule not found")
	}
	return &schedule, nil
}

type PaymentScheduleFilter struct {
	VendorId *int
	Status   *PaymentStatus
}

func PaginatePaymentSchedule(ctx context.Context, limit int, after *string, filter PaymentScheduleFilter) ([]VendorPaymentSchedule, *PageInfo, error) {
	return FetchPageIdCursor[VendorPaymentSchedule](ctx, limit, after, func(dbCtx *gorm.DB) *gorm.DB {
		if filter.VendorId != nil {
			dbCtx = dbCtx.Where("vendor_id = ?", *filter.VendorId)
		}
		if filter.Status != nil {
			dbCtx = dbCtx.Where("payment_status = ?", *filter.Status)
		}
		return dbCtx.Preload("Vendor")
	})
}

// VerifyPRExcel records the purchase manager's sign-off on the schedule. The
// verification lives here, not on the receiving record: uploading the file and
// vouching for its contents are separate acts by separate roles.
func VerifyPRExcel(ctx context.Context, scheduleId int) (*VendorPaymentSchedule, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, NewAPIError(ErrorKindPermissionDenied, CodeNotAssignedToUser, "missing authenticated user")
	}

	tx := db.WithContext(ctx).Begin()
	defer tx.Rollback()

	schedule, err := GetPaymentScheduleForUpdate(tx, scheduleId)
	if err != nil {
		return nil, err
	}

	var record ReceivingRecord
	if err := tx.First(&record, schedule.ReceivingRecordId).Error; err != nil {
		return nil, NewAPIError(ErrorKindNotFound, CodeReceivingRecordNotFound, "receiving record not found")
	}
	if !record.PrExcelFileUploaded {
		return nil, NewAPIError(ErrorKindPrerequisiteUnmet, CodePrExcelRequired,
			"PR excel file must be uploaded before verification")
	}

	now := time.Now().UTC()
	err = tx.Model(schedule).Updates(map[string]interface{}{
		"pr_excel_verified":      true,
		"pr_excel_verified_by":   userId,
		"pr_excel_verified_date": now,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetPaymentSchedule(ctx, scheduleId)
}
