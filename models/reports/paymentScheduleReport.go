package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type PaymentScheduleRow struct {
	ScheduleId      int             `json:"schedule_id"`
	BillNumber      string          `json:"bill_number"`
	VendorName      *string         `json:"vendor_name"`
	BranchName      *string         `json:"branch_name"`
	BillAmount      decimal.Decimal `json:"bill_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	GrrAmount       decimal.Decimal `json:"grr_amount"`
	PriAmount       decimal.Decimal `json:"pri_amount"`
	FinalBillAmount decimal.Decimal `json:"final_bill_amount"`
	PaymentStatus   string          `json:"payment_status"`
	PrExcelVerified bool            `json:"pr_excel_verified"`
	BillDate        time.Time       `json:"bill_date"`
}

type PaymentScheduleSummary struct {
	Rows         []PaymentScheduleRow `json:"rows"`
	TotalPayable decimal.Decimal      `json:"total_payable"`
	TotalPaid    decimal.Decimal      `json:"total_paid"`
}

type PaymentScheduleReportFilter struct {
	VendorId *int
	BranchId *int
	Status   *models.PaymentStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// GetPaymentScheduleReport aggregates the payable ledger joined with vendor
// and branch names. Voided records are excluded; their schedules are dead
// weight, not liabilities.
func GetPaymentScheduleReport(ctx context.Context, filter PaymentScheduleReportFilter) (*PaymentScheduleSummary, error) {
	sql := `
SELECT
    vps.id AS schedule_id,
    rr.bill_number,
    vendors.name AS vendor_name,
    branches.name AS branch_name,
    vps.bill_amount,
    COALESCE(vps.discount_amount, 0) AS discount_amount,
    COALESCE(vps.grr_amount, 0) AS grr_amount,
    COALESCE(vps.pri_amount, 0) AS pri_amount,
    vps.final_bill_amount,
    vps.payment_status,
    vps.pr_excel_verified,
    rr.bill_date
FROM
    vendor_payment_schedules AS vps
    JOIN receiving_records AS rr ON rr.id = vps.receiving_record_id
    LEFT JOIN vendors ON vendors.id = vps.vendor_id
    LEFT JOIN branches ON branches.id = rr.branch_id
WHERE
    rr.status <> 'voided'
`
	args := []interface{}{}
	if filter.VendorId != nil {
		sql += " AND vps.vendor_id = ?"
		args = append(args, *filter.VendorId)
	}
	if filter.BranchId != nil {
		sql += " AND rr.branch_id = ?"
		args = append(args, *filter.BranchId)
	}
	if filter.Status != nil {
		sql += " AND vps.payment_status = ?"
		args = append(args, *filter.Status)
	}
	if filter.FromDate != nil {
		sql += " AND rr.bill_date >= ?"
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		sql += " AND rr.bill_date <= ?"
		args = append(args, *filter.ToDate)
	}
	sql += " ORDER BY rr.bill_date DESC, vps.id DESC"

	var rows []PaymentScheduleRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	summary := PaymentScheduleSummary{Rows: rows}
	for _, row := range rows {
		if row.PaymentStatus == string(models.PaymentStatusPaid) {
			summary.TotalPaid = summary.TotalPaid.Add(row.FinalBillAmount)
		} else {
			summary.TotalPayable = summary.TotalPayable.Add(row.FinalBillAmount)
		}
	}
	return &summary, nil
}

// ExportPaymentScheduleExcel streams the report as an xlsx workbook.
func ExportPaymentScheduleExcel(ctx context.Context, w io.Writer, filter PaymentScheduleReportFilter) error {
	summary, err := GetPaymentScheduleReport(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	headings := []string{
		"BillNumber", "Vendor", "Branch", "BillDate",
		"BillAmount", "Discount", "GRR", "PRI", "FinalAmount",
		"Status", "PRExcelVerified",
	}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	// Add data
	for i, d := range summary.Rows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, d.BillNumber)
		f.SetCellValue(sheetName, "B"+row, utils.DereferencePtr(d.VendorName, ""))
		f.SetCellValue(sheetName, "C"+row, utils.DereferencePtr(d.BranchName, ""))
		f.SetCellValue(sheetName, "D"+row, d.BillDate.Format("2006-01-02"))
		f.SetCellValue(sheetName, "E"+row, d.BillAmount.InexactFloat64())
		f.SetCellValue(sheetName, "F"+row, d.DiscountAmount.InexactFloat64())
		f.SetCellValue(sheetName, "G"+row, d.GrrAmount.InexactFloat64())
		f.SetCellValue(sheetName, "H"+row, d.PriAmount.InexactFloat64())
		f.SetCellValue(sheetName, "I"+row, d.FinalBillAmount.InexactFloat64())
		f.SetCellValue(sheetName, "J"+row, d.PaymentStatus)
		f.SetCellValue(sheetName, "K"+row, d.PrExcelVerified)
	}

	// Totals
	totalRow := fmt.Sprint(len(summary.Rows) + 3)
	f.SetCellValue(sheetName, "A"+totalRow, "TotalPayable")
	f.SetCellValue(sheetName, "E"+totalRow, summary.TotalPayable.InexactFloat64())
	f.SetCellValue(sheetName, "A"+fmt.Sprint(len(summary.Rows)+4), "TotalPaid")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(len(summary.Rows)+4), summary.TotalPaid.InexactFloat64())

	return f.Write(w)
}
