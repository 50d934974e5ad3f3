package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTemplateRender(t *testing.T) {
	template := &TaskTemplate{
		Role:                RoleInventoryManager,
		TitleTemplate:       "Verify stock for bill {bill_number}",
		DescriptionTemplate: "Vendor {vendor_id}, branch {branch_id}, amount {bill_amount}.",
	}
	tc := TemplateContext{
		BillNumber: "BILL-042",
		VendorId:   7,
		BillAmount: "22401.25",
		BranchId:   2,
	}

	title, description := template.Render(tc)
	if title != "Verify stock for bill BILL-042" {
		t.Fatalf("unexpected title: %q", title)
	}
	if description != "Vendor 7, branch 2, amount 22401.25." {
		t.Fatalf("unexpected description: %q", description)
	}
}

func TestTemplateRender_UnknownPlaceholderKept(t *testing.T) {
	template := &TaskTemplate{TitleTemplate: "Task {bill_number} {typo_placeholder}"}
	title, _ := template.Render(TemplateContext{BillNumber: "B-1"})
	if title != "Task B-1 {typo_placeholder}" {
		t.Fatalf("unknown placeholders must survive rendering, got %q", title)
	}
}

func TestNewTemplateContext(t *testing.T) {
	record := &ReceivingRecord{
		BillNumber: "BILL-9",
		VendorId:   4,
		BranchId:   1,
		BillAmount: decimal.RequireFromString("10563.95"),
	}
	tc := NewTemplateContext(record)
	if tc.BillAmount != "10563.95" {
		t.Fatalf("bill amount must render with two decimal places, got %q", tc.BillAmount)
	}
	if tc.BillNumber != "BILL-9" || tc.VendorId != 4 || tc.BranchId != 1 {
		t.Fatalf("unexpected template context: %+v", tc)
	}
}
