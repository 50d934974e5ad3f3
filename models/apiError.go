package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recoverable, caller-facing failures. Storage-layer
// connectivity errors are NOT wrapped in APIError; they propagate as-is and
// are treated as fatal/retryable by the caller.
type ErrorKind string

const (
	ErrorKindNotFound           ErrorKind = "NotFound"
	ErrorKindDuplicate          ErrorKind = "Duplicate"
	ErrorKindPermissionDenied   ErrorKind = "PermissionDenied"
	ErrorKindPrerequisiteUnmet  ErrorKind = "PrerequisiteUnmet"
	ErrorKindInvariantViolation ErrorKind = "InvariantViolation"
	ErrorKindAlreadyCompleted   ErrorKind = "AlreadyCompleted"
	ErrorKindInvalidInput       ErrorKind = "InvalidInput"
)

// Machine-readable error codes. Operators key remediation messages off these,
// so prerequisite failures must never collapse into a generic code.
const (
	CodeTaskNotFound            = "TASK_NOT_FOUND"
	CodeReceivingRecordNotFound = "RECEIVING_RECORD_NOT_FOUND"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodeDuplicateTasks          = "DUPLICATE_TASKS"
	CodeNotAssignedToUser       = "NOT_ASSIGNED_TO_USER"
	CodeTaskAlreadyCompleted    = "TASK_ALREADY_COMPLETED"
	CodeErpInvoiceRequired      = "ERP_INVOICE_REQUIRED"
	CodePrExcelRequired         = "PR_EXCEL_REQUIRED"
	CodeOriginalBillRequired    = "ORIGINAL_BILL_REQUIRED"
	CodeVerificationNotFinished = "VERIFICATION_NOT_FINISHED"
	CodeDependenciesNotMet      = "DEPENDENCIES_NOT_MET"
	CodeDeductionsExceedBill    = "DEDUCTIONS_EXCEED_BILL"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeAlreadyPaid             = "ALREADY_PAID"
	CodeCertificateRequired     = "CERTIFICATE_REQUIRED"
	CodeRecordVoided            = "RECORD_VOIDED"
)

type APIError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"error_code"`
	Message string    `json:"error"`
	// Detail carries the blocking role / missing artifact for
	// PrerequisiteUnmet, or the violated bound for InvariantViolation.
	Detail string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(kind ErrorKind, code, message string) *APIError {
	return &APIError{Kind: kind, Code: code, Message: message}
}

func (e *APIError) WithDetail(detail string) *APIError {
	e.Detail = detail
	return e
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsErrorKind(err error, kind ErrorKind) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Kind == kind
	}
	return false
}
