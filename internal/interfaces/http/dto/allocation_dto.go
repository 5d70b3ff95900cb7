package dto

import (
	"time"

	"github.com/propbill/backend/internal/application/allocation"
	"github.com/propbill/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// BillResponse represents a bill in API responses
type BillResponse struct {
	ID                 string          `json:"id"`
	PropertyID         string          `json:"propertyId"`
	ProviderName       string          `json:"providerName"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	BillingPeriodStart *time.Time      `json:"billingPeriodStart,omitempty"`
	BillingPeriodEnd   *time.Time      `json:"billingPeriodEnd,omitempty"`
	Status             string          `json:"status"`
	ExceptionReason    string          `json:"exceptionReason,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// ToBillResponse converts a bill to its API shape
func ToBillResponse(b *billing.Bill) BillResponse {
	resp := BillResponse{
		ID:              b.ID,
		PropertyID:      b.PropertyID,
		ProviderName:    b.ProviderName,
		TotalAmount:     b.TotalAmount,
		Status:          string(b.Status),
		ExceptionReason: b.ExceptionReason,
		UpdatedAt:       b.UpdatedAt,
	}
	if !b.BillingPeriodStart.IsZero() {
		start := b.BillingPeriodStart
		resp.BillingPeriodStart = &start
	}
	if !b.BillingPeriodEnd.IsZero() {
		end := b.BillingPeriodEnd
		resp.BillingPeriodEnd = &end
	}
	return resp
}

// AllocationRowDTO is one tenant's share in a draft. Clients send rows back
// unchanged apart from their edits.
type AllocationRowDTO struct {
	TenantID   string          `json:"tenantId" binding:"required"`
	TenantName string          `json:"tenantName"`
	GLA        decimal.Decimal `json:"gla"`
	Method     string          `json:"method" binding:"required,allocation_method"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// BalanceDTO reconciles the rows with the bill total. A non-zero
// difference within tolerance still counts as balanced.
type BalanceDTO struct {
	BillTotal  decimal.Decimal `json:"billTotal"`
	Allocated  decimal.Decimal `json:"allocated"`
	Difference decimal.Decimal `json:"difference"`
	Tolerance  decimal.Decimal `json:"tolerance"`
	Balanced   bool            `json:"balanced"`
}

// DraftResponse is the working row set for a bill
type DraftResponse struct {
	Bill    BillResponse       `json:"bill"`
	Rows    []AllocationRowDTO `json:"rows"`
	Balance BalanceDTO         `json:"balance"`
}

// RowEditDTO changes one row. Exactly one of method, percentage or amount
// should be set.
type RowEditDTO struct {
	Index      *int             `json:"index" binding:"required,min=0"`
	Method     *string          `json:"method,omitempty" binding:"omitempty,allocation_method"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
}

// RecalculateRequest carries the current rows and the edits to apply in order
type RecalculateRequest struct {
	Rows  []AllocationRowDTO `json:"rows" binding:"dive"`
	Edits []RowEditDTO       `json:"edits" binding:"dive"`
}

// CommitRequest carries the rows to persist
type CommitRequest struct {
	Rows []AllocationRowDTO `json:"rows" binding:"dive"`
}

// CommitResponse reports how many allocations were written
type CommitResponse struct {
	BillID  string `json:"billId"`
	Written int    `json:"written"`
	// Existing counts allocations kept from an earlier partial commit
	Existing int    `json:"existing"`
	Total    int    `json:"total"`
	Status   string `json:"status"`
}

// AllocationResponse represents a persisted allocation
type AllocationResponse struct {
	ID         string          `json:"id"`
	BillID     string          `json:"billId"`
	PropertyID string          `json:"propertyId"`
	TenantID   string          `json:"tenantId"`
	TenantName string          `json:"tenantName"`
	Method     string          `json:"method"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// FlagExceptionRequest moves a bill to the exception queue
type FlagExceptionRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ToRowDTOs converts draft rows to their API shape
func ToRowDTOs(rows []billing.Row) []AllocationRowDTO {
	out := make([]AllocationRowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, AllocationRowDTO{
			TenantID:   r.TenantID,
			TenantName: r.TenantName,
			GLA:        r.GLA,
			Method:     string(r.Method),
			Percentage: r.Percentage,
			Amount:     r.Amount,
		})
	}
	return out
}

// ToRows converts submitted rows back into draft rows
func ToRows(rows []AllocationRowDTO) []billing.Row {
	out := make([]billing.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, billing.Row{
			TenantID:   r.TenantID,
			TenantName: r.TenantName,
			GLA:        r.GLA,
			Method:     billing.Method(r.Method),
			Percentage: r.Percentage,
			Amount:     r.Amount,
		})
	}
	return out
}

// ToEdits converts edit DTOs to service edits
func ToEdits(edits []RowEditDTO) []allocation.Edit {
	out := make([]allocation.Edit, 0, len(edits))
	for _, e := range edits {
		edit := allocation.Edit{
			Percentage: e.Percentage,
			Amount:     e.Amount,
		}
		if e.Index != nil {
			edit.Index = *e.Index
		}
		if e.Method != nil {
			m := billing.Method(*e.Method)
			edit.Method = &m
		}
		out = append(out, edit)
	}
	return out
}

// ToDraftResponse converts a draft to its API shape
func ToDraftResponse(d *allocation.Draft) DraftResponse {
	return DraftResponse{
		Bill: ToBillResponse(d.Bill),
		Rows: ToRowDTOs(d.Rows),
		Balance: BalanceDTO{
			BillTotal:  d.Balance.BillTotal,
			Allocated:  d.Balance.Allocated,
			Difference: d.Balance.Difference,
			Tolerance:  billing.BalanceTolerance,
			Balanced:   d.Balance.Balanced,
		},
	}
}

// ToCommitResponse converts a commit result to its API shape
func ToCommitResponse(r allocation.CommitResult) CommitResponse {
	return CommitResponse{
		BillID:   r.BillID,
		Written:  r.Written,
		Existing: r.Existing,
		Total:    r.Total,
		Status:   string(r.Status),
	}
}

// ToAllocationResponses converts persisted allocations to their API shape
func ToAllocationResponses(allocs []billing.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, AllocationResponse{
			ID:         a.ID,
			BillID:     a.BillID,
			PropertyID: a.PropertyID,
			TenantID:   a.TenantID,
			TenantName: a.TenantName,
			Method:     string(a.Method),
			Percentage: a.Percentage,
			Amount:     a.Amount,
			Status:     string(a.Status),
			CreatedAt:  a.CreatedAt,
		})
	}
	return out
}
