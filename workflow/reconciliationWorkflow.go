package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const moduleReconciliation = "ReconciliationWorkflow"

// AdjustmentInput carries the three deduction terms. A nil amount means
// "leave the stored value unchanged"; a zero value explicitly clears it.
type AdjustmentInput struct {
	DiscountAmount *decimal.Decimal `json:"discount_amount"`
	DiscountNotes  *string          `json:"discount_notes"`
	DiscountRefNo  *string          `json:"discount_reference_number"`
	GrrAmount      *decimal.Decimal `json:"grr_amount"`
	GrrNotes       *string          `json:"grr_notes"`
	GrrRefNo       *string          `json:"grr_reference_number"`
	PriAmount      *decimal.Decimal `json:"pri_amount"`
	PriNotes       *string          `json:"pri_notes"`
	PriRefNo       *string          `json:"pri_reference_number"`
	Notes          *string          `json:"notes"`
}

// toCents converts a monetary amount to integer cents, rounding each term
// independently before any arithmetic. Subtracting floats directly produces
// results like 10563.949999999999 for 22401.25 - 11837.30; integer cents do
// not drift.
func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// computeFinalCents applies the deduction terms to the bill amount in integer
// cents. Returns the final amount and whether deductions stayed within the
// bill.
func computeFinalCents(billCents, discountCents, grrCents, priCents int64) (int64, bool) {
	final := billCents - discountCents - grrCents - priCents
	return final, final >= 0
}

// resolveDeduction picks the incoming amount if provided, otherwise the
// stored one, normalizing nil to zero.
func resolveDeduction(incoming, stored *decimal.Decimal) decimal.Decimal {
	if incoming != nil {
		return *incoming
	}
	if stored != nil {
		return *stored
	}
	return decimal.Zero
}

// ApplyAdjustment updates the deduction terms on a payment schedule,
// recomputes the final bill amount in integer cents, and appends an
// audit-trail row. Concurrent adjustments to the same schedule are serialized
// with an advisory lock so the audit trail never interleaves.
func ApplyAdjustment(ctx context.Context, scheduleId int, input AdjustmentInput) (*models.VendorPaymentSchedule, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser, "missing authenticated user")
	}

	for _, amount := range []*decimal.Decimal{input.DiscountAmount, input.GrrAmount, input.PriAmount} {
		if amount != nil && amount.IsNegative() {
			return nil, models.NewAPIError(models.ErrorKindInvalidInput, models.CodeInvalidAmount, "deduction amounts must not be negative")
		}
	}

	// RELEASE_LOCK only works while the transaction is still open; on a
	// finished tx it fails silently and the pooled session keeps the lock.
	// Deferring the release inside the Transaction closure runs it before
	// commit; the FOR UPDATE row lock holds until commit.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePaymentLock(tx, scheduleId); err != nil {
			config.LogError(logger, moduleReconciliation, "ApplyAdjustment", "acquire lock", scheduleId, err)
			return err
		}
		defer ReleasePaymentLock(tx, scheduleId)

		schedule, err := models.GetPaymentScheduleForUpdate(tx, scheduleId)
		if err != nil {
			return err
		}
		if schedule.PaymentStatus == models.PaymentStatusPaid {
			return models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeAlreadyPaid, "payment schedule is already paid")
		}

		discount := resolveDeduction(input.DiscountAmount, schedule.DiscountAmount)
		grr := resolveDeduction(input.GrrAmount, schedule.GrrAmount)
		pri := resolveDeduction(input.PriAmount, schedule.PriAmount)

		finalCents, withinBill := computeFinalCents(
			toCents(schedule.BillAmount), toCents(discount), toCents(grr), toCents(pri))
		if !withinBill {
			return models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeDeductionsExceedBill,
				"deductions exceed bill amount").
				WithDetail(fmt.Sprintf("bill=%s deductions=%s",
					schedule.BillAmount.StringFixed(2),
					discount.Add(grr).Add(pri).StringFixed(2)))
		}
		finalAmount := fromCents(finalCents)

		updates := map[string]interface{}{
			"discount_amount":   discount,
			"grr_amount":        grr,
			"pri_amount":        pri,
			"final_bill_amount": finalAmount,
		}
		if input.DiscountNotes != nil {
			updates["discount_notes"] = input.DiscountNotes
		}
		if input.DiscountRefNo != nil {
			updates["discount_ref_no"] = input.DiscountRefNo
		}
		if input.GrrNotes != nil {
			updates["grr_notes"] = input.GrrNotes
		}
		if input.GrrRefNo != nil {
			updates["grr_ref_no"] = input.GrrRefNo
		}
		if input.PriNotes != nil {
			updates["pri_notes"] = input.PriNotes
		}
		if input.PriRefNo != nil {
			updates["pri_ref_no"] = input.PriRefNo
		}
		if err := tx.Model(schedule).Updates(updates).Error; err != nil {
			config.LogError(logger, moduleReconciliation, "ApplyAdjustment", "update schedule", scheduleId, err)
			return err
		}

		adjustment := models.PaymentAdjustment{
			PaymentScheduleId: schedule.ID,
			AdjustedBy:        userId,
			DiscountAmount:    discount,
			GrrAmount:         grr,
			PriAmount:         pri,
			FinalBillAmount:   finalAmount,
			Notes:             input.Notes,
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			config.LogError(logger, moduleReconciliation, "ApplyAdjustment", "append adjustment", scheduleId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetPaymentSchedule(ctx, scheduleId)
}

// MarkPaid finalizes a payment schedule. Paying requires the accountant-side
// documents to be in place; the final amount is whatever the last adjustment
// computed.
func MarkPaid(ctx context.Context, scheduleId int, paymentReference string) (*models.VendorPaymentSchedule, error) {
	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, models.NewAPIError(models.ErrorKindPermissionDenied, models.CodeNotAssignedToUser, "missing authenticated user")
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePaymentLock(tx, scheduleId); err != nil {
			return err
		}
		// Released before commit; the row lock serializes until then.
		defer ReleasePaymentLock(tx, scheduleId)

		schedule, err := models.GetPaymentScheduleForUpdate(tx, scheduleId)
		if err != nil {
			return err
		}
		if schedule.PaymentStatus == models.PaymentStatusPaid {
			return models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeAlreadyPaid, "payment schedule is already paid")
		}

		var record models.ReceivingRecord
		if err := tx.First(&record, schedule.ReceivingRecordId).Error; err != nil {
			return models.NewAPIError(models.ErrorKindNotFound, models.CodeReceivingRecordNotFound, "receiving record not found")
		}
		if record.Status == models.ReceivingRecordStatusVoided {
			return models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeRecordVoided, "receiving record is voided")
		}
		if !record.OriginalBillUploaded {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeOriginalBillRequired,
				"original bill must be uploaded before payment")
		}
		if !schedule.PrExcelVerified {
			return models.NewAPIError(models.ErrorKindPrerequisiteUnmet, models.CodeVerificationNotFinished,
				"PR excel must be verified before payment")
		}

		now := time.Now().UTC()
		err = tx.Model(schedule).Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusPaid,
			"paid_at":           now,
			"paid_by":           userId,
			"payment_reference": paymentReference,
		}).Error
		if err != nil {
			return err
		}

		note := "marked paid"
		if paymentReference != "" {
			note = "marked paid, reference " + paymentReference
		}
		entry := models.PaymentAdjustment{
			PaymentScheduleId: schedule.ID,
			AdjustedBy:        userId,
			DiscountAmount:    utils.DereferencePtr(schedule.DiscountAmount),
			GrrAmount:         utils.DereferencePtr(schedule.GrrAmount),
			PriAmount:         utils.DereferencePtr(schedule.PriAmount),
			FinalBillAmount:   schedule.FinalBillAmount,
			Notes:             &note,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return models.QueueNotification(ctx, tx, record.ReceivedBy,
			"Vendor payment completed",
			fmt.Sprintf("Payment for bill %s (%s) has been marked paid.", record.BillNumber, schedule.FinalBillAmount.StringFixed(2)),
			"vendor_payment_schedule", schedule.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return models.GetPaymentSchedule(ctx, scheduleId)
}
