// Package allocation coordinates splitting a utility bill across the tenants
// of its property: drafting rows, applying operator edits and committing the
// result as allocation documents.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/propbill/backend/internal/domain/billing"
	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/domain/shared/valueobject"
	"github.com/propbill/backend/internal/infrastructure/lock"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrBillBusy is returned when another commit holds the bill
	ErrBillBusy = shared.NewDomainError("BILL_LOCKED", "Bill is being allocated by another operation, try again shortly")
	// ErrBillNoProperty is returned for bills that cannot be split yet
	ErrBillNoProperty = shared.NewDomainError("BILL_NO_PROPERTY", "Bill is not linked to a property")
)

// Draft is a working set of rows for one bill together with its balance
type Draft struct {
	Bill    *billing.Bill
	Rows    []billing.Row
	Balance billing.Balance
}

// Edit is one operator change to a draft row. Exactly one of Method,
// Percentage or Amount is expected to be set.
type Edit struct {
	Index      int
	Method     *billing.Method
	Percentage *decimal.Decimal
	Amount     *decimal.Decimal
}

// CommitResult reports how far a commit got. Written is meaningful on
// failure too: allocations already written are not rolled back. Existing
// counts rows a previous attempt had already persisted.
type CommitResult struct {
	BillID   string
	Written  int
	Existing int
	Total    int
	Status   billing.BillStatus
}

// Service runs the allocation workflow against the document store
type Service struct {
	bills       billing.BillRepository
	allocations billing.AllocationRepository
	tenants     portfolio.TenantRepository
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// ServiceConfig holds the collaborators of the allocation service
type ServiceConfig struct {
	Bills       billing.BillRepository
	Allocations billing.AllocationRepository
	Tenants     portfolio.TenantRepository
	// Locker serialises commits per bill. Defaults to an in-process lock.
	Locker  lock.Locker
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewService creates a new allocation Service
func NewService(cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewLocalLocker(5 * time.Second)
	}
	return &Service{
		bills:       cfg.Bills,
		allocations: cfg.Allocations,
		tenants:     cfg.Tenants,
		locker:      locker,
		metrics:     cfg.Metrics,
		logger:      log,
	}
}

// GetBill loads a bill
func (s *Service) GetBill(ctx context.Context, billID string) (*billing.Bill, error) {
	return s.bills.FindByID(ctx, billID)
}

// ListAllocations returns the allocations written for a bill
func (s *Service) ListAllocations(ctx context.Context, billID string) ([]billing.Allocation, error) {
	if _, err := s.bills.FindByID(ctx, billID); err != nil {
		return nil, err
	}
	return s.allocations.FindByBill(ctx, billID)
}

// Draft fetches the tenants of the bill's property and seeds one row per
// tenant
func (s *Service) Draft(ctx context.Context, billID string) (*Draft, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.PropertyID == "" {
		return nil, ErrBillNoProperty
	}

	tenants, err := s.tenants.FindByProperty(ctx, bill.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants for property %s: %w", bill.PropertyID, err)
	}

	rows := billing.InitRows(tenants, bill.TotalAmount)
	return &Draft{
		Bill:    bill,
		Rows:    rows,
		Balance: billing.CheckBalance(rows, bill.TotalAmount),
	}, nil
}

// Recalculate applies edits in order to a submitted row set. Method edits
// re-run every gla_prorata row; percentage and amount edits touch one row.
func (s *Service) Recalculate(ctx context.Context, billID string, rows []billing.Row, edits []Edit) (*Draft, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	total := bill.TotalAmount
	out := rows
	for _, e := range edits {
		if e.Index < 0 || e.Index >= len(out) {
			return nil, shared.NewDomainError("INVALID_ROW_INDEX",
				fmt.Sprintf("Row index %d is out of range (0..%d)", e.Index, len(out)-1))
		}
		switch {
		case e.Method != nil:
			if !e.Method.IsValid() {
				return nil, shared.NewDomainError("INVALID_METHOD", fmt.Sprintf("Invalid allocation method: %s", *e.Method))
			}
			out = billing.SetMethod(out, e.Index, *e.Method, total)
		case e.Percentage != nil:
			out = billing.SetPercentage(out, e.Index, *e.Percentage, total)
		case e.Amount != nil:
			out = billing.SetAmount(out, e.Index, *e.Amount, total)
		}
	}
	if len(edits) == 0 {
		out = billing.Recalculate(rows, total)
	}

	return &Draft{
		Bill:    bill,
		Rows:    out,
		Balance: billing.CheckBalance(out, total),
	}, nil
}

// Commit persists the rows with a positive amount, one document per row in
// row order, then marks the bill allocated. Under the bill lock the rows are
// matched to the property's tenants and recalculated against the stored bill
// total, so only fixed and percentage rows keep operator-entered values.
//
// The first failed write stops the commit; allocations written before it
// stay in place and are counted in the result. A retry with the same rows
// skips tenants that already hold a matching allocation and writes the rest.
func (s *Service) Commit(ctx context.Context, billID string, rows []billing.Row) (CommitResult, error) {
	ctx = logger.WithBillID(ctx, billID)
	log := logger.L(ctx, s.logger)
	started := time.Now()
	result := CommitResult{BillID: billID}

	var total decimal.Decimal
	err := s.locker.WithLock(ctx, "bill:"+billID, func(ctx context.Context) error {
		// another operator may have allocated the bill while we waited
		current, err := s.bills.FindByID(ctx, billID)
		if err != nil {
			return err
		}
		result.Status = current.Status
		total = current.TotalAmount
		if err := current.EnsureAllocatable(); err != nil {
			return err
		}

		prepared, err := s.prepareRows(ctx, current, rows)
		if err != nil {
			log.Info("Allocation rejected", zap.Error(err))
			return err
		}
		positive := billing.PositiveRows(prepared)
		result.Total = len(positive)

		existing, err := s.allocations.FindByBill(ctx, billID)
		if err != nil {
			return fmt.Errorf("failed to load existing allocations: %w", err)
		}
		pending, err := pendingRows(positive, existing)
		if err != nil {
			log.Info("Allocation rejected", zap.Error(err))
			return err
		}
		result.Existing = len(positive) - len(pending)
		if result.Existing > 0 {
			log.Info("Resuming allocation commit", zap.Int("existing", result.Existing))
		}

		for _, row := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			alloc, err := billing.NewAllocation(current, row)
			if err != nil {
				return err
			}
			if err := s.allocations.Create(ctx, alloc); err != nil {
				return err
			}
			result.Written++
		}

		if err := current.MarkAllocated(); err != nil {
			return err
		}
		if err := s.bills.UpdateStatus(ctx, current); err != nil {
			return fmt.Errorf("allocations saved but bill status update failed: %w", err)
		}
		result.Status = current.Status
		return nil
	})
	if errors.Is(err, lock.ErrLockBusy) {
		err = ErrBillBusy
	}

	s.observe(result, started, err)
	if err != nil {
		log.Error("Allocation commit failed",
			zap.Int("written", result.Written),
			zap.Int("total", result.Total),
			zap.Error(err))
		return result, err
	}

	log.Info("Bill allocated",
		zap.Int("allocations", result.Written),
		zap.Int("existing", result.Existing),
		zap.String("total_amount", total.StringFixed(2)))
	return result, nil
}

// prepareRows resolves every row against the tenants of the bill's property,
// takes name and GLA from the stored tenant, recalculates the row set and
// runs the pre-flight checks
func (s *Service) prepareRows(ctx context.Context, bill *billing.Bill, rows []billing.Row) ([]billing.Row, error) {
	if bill.PropertyID == "" {
		return nil, ErrBillNoProperty
	}
	if len(rows) == 0 {
		return nil, billing.ErrNoAllocationRows
	}
	tenants, err := s.tenants.FindByProperty(ctx, bill.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants for property %s: %w", bill.PropertyID, err)
	}
	byID := make(map[string]portfolio.Tenant, len(tenants))
	for _, t := range tenants {
		byID[t.ID] = t
	}

	out := make([]billing.Row, len(rows))
	for i, r := range rows {
		if !r.Method.IsValid() {
			return nil, shared.Errorf("INVALID_METHOD", "Invalid allocation method: %s", r.Method)
		}
		t, ok := byID[r.TenantID]
		if !ok {
			return nil, shared.Errorf(billing.CodeUnknownTenant,
				"Tenant %q does not belong to property %s", r.TenantID, bill.PropertyID)
		}
		r.TenantName = t.Name
		r.GLA = t.GLA
		out[i] = r
	}

	out = billing.Recalculate(out, bill.TotalAmount)
	if err := billing.ValidateForCommit(out, bill.TotalAmount); err != nil {
		return nil, err
	}
	return out, nil
}

// pendingRows drops rows whose tenant already holds an identical allocation
// for the bill. Any other stored allocation conflicts with the row set.
func pendingRows(rows []billing.Row, existing []billing.Allocation) ([]billing.Row, error) {
	if len(existing) == 0 {
		return rows, nil
	}
	byTenant := make(map[string]billing.Row, len(rows))
	for _, r := range rows {
		byTenant[r.TenantID] = r
	}
	done := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		r, ok := byTenant[a.TenantID]
		if _, dup := done[a.TenantID]; dup || !ok || r.Method != a.Method || !r.Amount.Equal(a.Amount) {
			return nil, shared.Errorf(billing.CodeAllocationConflict,
				"%s already holds an allocation of %s for this bill",
				a.TenantName, valueobject.NewMoneyZAR(a.Amount))
		}
		done[a.TenantID] = struct{}{}
	}

	out := make([]billing.Row, 0, len(rows)-len(done))
	for _, r := range rows {
		if _, ok := done[r.TenantID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// FlagException moves a bill to the exception queue
func (s *Service) FlagException(ctx context.Context, billID, reason string) (*billing.Bill, error) {
	ctx = logger.WithBillID(ctx, billID)

	var bill *billing.Bill
	err := s.locker.WithLock(ctx, "bill:"+billID, func(ctx context.Context) error {
		b, err := s.bills.FindByID(ctx, billID)
		if err != nil {
			return err
		}
		if err := b.FlagException(reason); err != nil {
			return err
		}
		if err := s.bills.UpdateStatus(ctx, b); err != nil {
			return err
		}
		bill = b
		return nil
	})
	if errors.Is(err, lock.ErrLockBusy) {
		return nil, ErrBillBusy
	}
	if err != nil {
		return nil, err
	}

	logger.L(ctx, s.logger).Info("Bill flagged as exception", zap.String("reason", bill.ExceptionReason))
	return bill, nil
}

func (s *Service) observe(result CommitResult, started time.Time, err error) {
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultFailed
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && result.Written == 0 {
			outcome = metrics.ResultRejected
		}
	}
	s.metrics.ObserveAllocationCommit(outcome, result.Written, time.Since(started))
}
