package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodePersistence is used when the document store rejects a write
	ErrCodePersistence = "ERR_PERSISTENCE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeBillLocked is used when another operation holds the bill
	ErrCodeBillLocked = "ERR_BILL_LOCKED"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeAllocationNoRows is used when a property has no tenants to allocate to
	ErrCodeAllocationNoRows = "ERR_ALLOCATION_NO_ROWS"
	// ErrCodeNothingAllocated is used when every row is zero
	ErrCodeNothingAllocated = "ERR_ALLOCATION_NOTHING_ALLOCATED"
	// ErrCodeAllocationUnbalanced is used when rows do not sum to the bill total
	ErrCodeAllocationUnbalanced = "ERR_ALLOCATION_UNBALANCED"
	// ErrCodeBillNoProperty is used when a bill is not linked to a property
	ErrCodeBillNoProperty = "ERR_BILL_NO_PROPERTY"
	// ErrCodeAllocationNegativeAmount is used when a row carries a negative amount
	ErrCodeAllocationNegativeAmount = "ERR_ALLOCATION_NEGATIVE_AMOUNT"
	// ErrCodeAllocationPercentageRange is used when a percentage row is outside 0 to 100
	ErrCodeAllocationPercentageRange = "ERR_ALLOCATION_PERCENTAGE_OUT_OF_RANGE"
	// ErrCodeAllocationDuplicateTenant is used when a tenant appears on two rows
	ErrCodeAllocationDuplicateTenant = "ERR_ALLOCATION_DUPLICATE_TENANT"
	// ErrCodeAllocationUnknownTenant is used when a row names a tenant of another property
	ErrCodeAllocationUnknownTenant = "ERR_ALLOCATION_UNKNOWN_TENANT"
	// ErrCodeAllocationConflict is used when stored allocations disagree with the rows
	ErrCodeAllocationConflict = "ERR_ALLOCATION_CONFLICT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeFileTooLarge is used when an upload exceeds the size limit
	ErrCodeFileTooLarge = "ERR_FILE_TOO_LARGE"
)

// Import error codes
const (
	// ErrCodeImportParse is used when an uploaded spreadsheet cannot be read
	ErrCodeImportParse = "ERR_IMPORT_PARSE"
	// ErrCodeImportMissingColumn is used when a required header is absent
	ErrCodeImportMissingColumn = "ERR_IMPORT_MISSING_COLUMN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodePersistence: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeBillLocked:          http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:         http.StatusUnprocessableEntity,
	ErrCodeAllocationNoRows:     http.StatusUnprocessableEntity,
	ErrCodeNothingAllocated:     http.StatusUnprocessableEntity,
	ErrCodeAllocationUnbalanced: http.StatusUnprocessableEntity,
	ErrCodeBillNoProperty:       http.StatusUnprocessableEntity,

	ErrCodeAllocationNegativeAmount:  http.StatusUnprocessableEntity,
	ErrCodeAllocationPercentageRange: http.StatusUnprocessableEntity,
	ErrCodeAllocationDuplicateTenant: http.StatusUnprocessableEntity,
	ErrCodeAllocationUnknownTenant:   http.StatusUnprocessableEntity,
	ErrCodeAllocationConflict:        http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeFileTooLarge: http.StatusRequestEntityTooLarge,

	// Import errors -> 400 Bad Request
	ErrCodeImportParse:         http.StatusBadRequest,
	ErrCodeImportMissingColumn: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                    ErrCodeNotFound,
	"ALREADY_EXISTS":               ErrCodeAlreadyExists,
	"INVALID_INPUT":                ErrCodeInvalidInput,
	"INVALID_STATE":                ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":         ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":             ErrCodeValidation,
	"BAD_REQUEST":                  ErrCodeBadRequest,
	"INTERNAL_ERROR":               ErrCodeInternal,
	"BILL_LOCKED":                  ErrCodeBillLocked,
	"BILL_NO_PROPERTY":             ErrCodeBillNoProperty,
	"ALLOCATION_NO_ROWS":           ErrCodeAllocationNoRows,
	"ALLOCATION_NOTHING_ALLOCATED": ErrCodeNothingAllocated,
	"ALLOCATION_UNBALANCED":        ErrCodeAllocationUnbalanced,
	"ALLOCATION_NEGATIVE_AMOUNT":   ErrCodeAllocationNegativeAmount,
	"ALLOCATION_DUPLICATE_TENANT":  ErrCodeAllocationDuplicateTenant,
	"ALLOCATION_UNKNOWN_TENANT":    ErrCodeAllocationUnknownTenant,
	"ALLOCATION_CONFLICT":          ErrCodeAllocationConflict,
	"INVALID_REASON":               ErrCodeInvalidInput,
	"INVALID_METHOD":               ErrCodeInvalidInput,
	"INVALID_ROW_INDEX":            ErrCodeInvalidInput,
	"INVALID_AMOUNT":               ErrCodeInvalidInput,
	"INVALID_TENANT":               ErrCodeInvalidInput,
	"INVALID_BILL":                 ErrCodeInvalidInput,
	"IMPORT_MISSING_COLUMN":        ErrCodeImportMissingColumn,

	"ALLOCATION_PERCENTAGE_OUT_OF_RANGE": ErrCodeAllocationPercentageRange,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
