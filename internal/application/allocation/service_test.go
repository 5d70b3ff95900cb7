package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propbill/backend/internal/domain/billing"
	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/lock"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockBillRepository is a mock implementation of billing.BillRepository
type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) FindByID(ctx context.Context, id string) (*billing.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so status changes do not leak between calls
	b := *args.Get(0).(*billing.Bill)
	return &b, args.Error(1)
}

func (m *MockBillRepository) UpdateStatus(ctx context.Context, bill *billing.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

// MockAllocationRepository is a mock implementation of billing.AllocationRepository
type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) Create(ctx context.Context, allocation *billing.Allocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

func (m *MockAllocationRepository) FindByBill(ctx context.Context, billID string) ([]billing.Allocation, error) {
	args := m.Called(ctx, billID)
	return args.Get(0).([]billing.Allocation), args.Error(1)
}

// MockTenantRepository is a mock implementation of portfolio.TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id string) (*portfolio.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portfolio.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByProperty(ctx context.Context, propertyID string) ([]portfolio.Tenant, error) {
	args := m.Called(ctx, propertyID)
	return args.Get(0).([]portfolio.Tenant), args.Error(1)
}

type testDeps struct {
	bills       *MockBillRepository
	allocations *MockAllocationRepository
	tenants     *MockTenantRepository
	registry    *prometheus.Registry
	service     *Service
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()
	registry := prometheus.NewRegistry()
	d := &testDeps{
		bills:       new(MockBillRepository),
		allocations: new(MockAllocationRepository),
		tenants:     new(MockTenantRepository),
		registry:    registry,
	}
	d.service = NewService(ServiceConfig{
		Bills:       d.bills,
		Allocations: d.allocations,
		Tenants:     d.tenants,
		Locker:      lock.NewLocalLocker(time.Second),
		Metrics:     metrics.NewWithRegistry(registry, registry, "test"),
		Logger:      zaptest.NewLogger(t),
	})
	return d
}

// commitCount reads propbill_allocation_commits_total for one result label
func (d *testDeps) commitCount(t *testing.T, result string) float64 {
	t.Helper()
	families, err := d.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "propbill_allocation_commits_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBill(total string) *billing.Bill {
	return &billing.Bill{
		BaseEntity:   shared.BaseEntity{ID: "bill-1"},
		PropertyID:   "prop-1",
		ProviderName: "City Of Joburg",
		TotalAmount:  dec(total),
		Status:       billing.BillStatusValidated,
	}
}

func tenant(id, name, gla string) portfolio.Tenant {
	propertyID := "prop-1"
	return portfolio.Tenant{
		BaseEntity: shared.BaseEntity{ID: id},
		Name:       name,
		GLA:        dec(gla),
		PropertyID: &propertyID,
	}
}

// expectCommitLookups stubs the tenant and stored-allocation reads a commit
// makes under the bill lock
func (d *testDeps) expectCommitLookups(existing []billing.Allocation) {
	d.tenants.On("FindByProperty", mock.Anything, "prop-1").Return([]portfolio.Tenant{
		tenant("t1", "Woolworths", "300"),
		tenant("t2", "Pick n Pay", "700"),
		tenant("t3", "Checkers", "500"),
	}, nil)
	if existing == nil {
		existing = []billing.Allocation{}
	}
	d.allocations.On("FindByBill", mock.Anything, "bill-1").Return(existing, nil)
}

func methodPtr(m billing.Method) *billing.Method {
	return &m
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestService_Draft(t *testing.T) {
	t.Run("single tenant absorbs the bill", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.tenants.On("FindByProperty", mock.Anything, "prop-1").
			Return([]portfolio.Tenant{tenant("t1", "Woolworths", "300")}, nil)

		draft, err := d.service.Draft(context.Background(), "bill-1")
		require.NoError(t, err)
		require.Len(t, draft.Rows, 1)
		assert.Equal(t, billing.MethodFullAbsorption, draft.Rows[0].Method)
		assert.True(t, draft.Rows[0].Amount.Equal(dec("1000")))
		assert.True(t, draft.Balance.Balanced)
	})

	t.Run("several tenants start at zero", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.tenants.On("FindByProperty", mock.Anything, "prop-1").Return([]portfolio.Tenant{
			tenant("t1", "Woolworths", "300"),
			tenant("t2", "Pick n Pay", "700"),
		}, nil)

		draft, err := d.service.Draft(context.Background(), "bill-1")
		require.NoError(t, err)
		require.Len(t, draft.Rows, 2)
		for _, r := range draft.Rows {
			assert.Equal(t, billing.MethodPercentage, r.Method)
			assert.True(t, r.Amount.IsZero())
		}
		assert.False(t, draft.Balance.Balanced)
		assert.True(t, draft.Balance.Difference.Equal(dec("-1000")))
	})

	t.Run("bill without property", func(t *testing.T) {
		d := newTestService(t)
		bill := newBill("1000")
		bill.PropertyID = ""
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(bill, nil)

		_, err := d.service.Draft(context.Background(), "bill-1")
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "BILL_NO_PROPERTY", domainErr.Code)
	})

	t.Run("missing bill", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "nope").Return(nil, shared.ErrNotFound)

		_, err := d.service.Draft(context.Background(), "nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestService_Recalculate(t *testing.T) {
	rows := []billing.Row{
		{TenantID: "t1", TenantName: "Woolworths", GLA: dec("300"), Method: billing.MethodPercentage},
		{TenantID: "t2", TenantName: "Pick n Pay", GLA: dec("700"), Method: billing.MethodPercentage},
	}

	t.Run("method edits prorate by gla", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)

		draft, err := d.service.Recalculate(context.Background(), "bill-1", rows, []Edit{
			{Index: 0, Method: methodPtr(billing.MethodGLAProrata)},
			{Index: 1, Method: methodPtr(billing.MethodGLAProrata)},
		})
		require.NoError(t, err)
		assert.True(t, draft.Rows[0].Percentage.Equal(dec("30")))
		assert.True(t, draft.Rows[0].Amount.Equal(dec("300")))
		assert.True(t, draft.Rows[1].Amount.Equal(dec("700")))
		assert.True(t, draft.Balance.Balanced)
		// input untouched
		assert.Equal(t, billing.MethodPercentage, rows[0].Method)
	})

	t.Run("percentage and amount edits", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)

		draft, err := d.service.Recalculate(context.Background(), "bill-1", rows, []Edit{
			{Index: 0, Percentage: decPtr("25")},
			{Index: 1, Amount: decPtr("750")},
		})
		require.NoError(t, err)
		assert.True(t, draft.Rows[0].Amount.Equal(dec("250")))
		assert.True(t, draft.Rows[1].Percentage.Equal(dec("75")))
		assert.True(t, draft.Balance.Balanced)
	})

	t.Run("reports drift", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("100"), nil)
		three := []billing.Row{
			{TenantID: "t1", GLA: dec("1"), Method: billing.MethodGLAProrata},
			{TenantID: "t2", GLA: dec("1"), Method: billing.MethodGLAProrata},
			{TenantID: "t3", GLA: dec("1"), Method: billing.MethodGLAProrata},
		}

		draft, err := d.service.Recalculate(context.Background(), "bill-1", three, nil)
		require.NoError(t, err)
		assert.True(t, draft.Balance.Difference.Equal(dec("-0.01")))
		assert.True(t, draft.Balance.Balanced)
	})

	t.Run("rejects bad index and method", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)

		_, err := d.service.Recalculate(context.Background(), "bill-1", rows, []Edit{{Index: 5, Amount: decPtr("1")}})
		assert.ErrorContains(t, err, "out of range")

		_, err = d.service.Recalculate(context.Background(), "bill-1", rows, []Edit{{Index: 0, Method: methodPtr("split")}})
		assert.ErrorContains(t, err, "Invalid allocation method")
	})
}

func TestService_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("gla split on R1000 writes two allocations and marks the bill allocated", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.tenants.On("FindByProperty", mock.Anything, "prop-1").Return([]portfolio.Tenant{
			tenant("t1", "Woolworths", "300"),
			tenant("t2", "Pick n Pay", "700"),
		}, nil)

		draft, err := d.service.Draft(ctx, "bill-1")
		require.NoError(t, err)
		draft, err = d.service.Recalculate(ctx, "bill-1", draft.Rows, []Edit{
			{Index: 0, Method: methodPtr(billing.MethodGLAProrata)},
			{Index: 1, Method: methodPtr(billing.MethodGLAProrata)},
		})
		require.NoError(t, err)

		d.allocations.On("FindByBill", mock.Anything, "bill-1").Return([]billing.Allocation{}, nil)
		var written []*billing.Allocation
		d.allocations.On("Create", mock.Anything, mock.AnythingOfType("*billing.Allocation")).
			Run(func(args mock.Arguments) {
				written = append(written, args.Get(1).(*billing.Allocation))
			}).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *billing.Bill) bool {
			return b.ID == "bill-1" && b.Status == billing.BillStatusAllocated
		})).Return(nil)

		result, err := d.service.Commit(ctx, "bill-1", draft.Rows)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Written)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, billing.BillStatusAllocated, result.Status)

		require.Len(t, written, 2)
		assert.Equal(t, "t1", written[0].TenantID)
		assert.True(t, written[0].Amount.Equal(dec("300")))
		assert.True(t, written[0].Percentage.Equal(dec("30")))
		assert.Equal(t, "t2", written[1].TenantID)
		assert.True(t, written[1].Amount.Equal(dec("700")))
		for _, a := range written {
			assert.Equal(t, billing.AllocationStatusPending, a.Status)
			assert.Equal(t, "prop-1", a.PropertyID)
		}
		assert.Equal(t, 1.0, d.commitCount(t, metrics.ResultSuccess))
		d.bills.AssertExpectations(t)
	})

	t.Run("fixed 400 and 550 on R1000 is rejected without writes", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		rows := []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("400")},
			{TenantID: "t2", Method: billing.MethodFixed, Amount: dec("550")},
		}
		result, err := d.service.Commit(ctx, "bill-1", rows)
		require.Error(t, err)
		assert.ErrorIs(t, err, billing.ErrUnbalanced)
		assert.Contains(t, err.Error(), "R-50.00")
		assert.Zero(t, result.Written)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		d.bills.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, d.commitCount(t, metrics.ResultRejected))
	})

	t.Run("no rows and nothing allocated", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		_, err := d.service.Commit(ctx, "bill-1", nil)
		assert.ErrorIs(t, err, billing.ErrNoAllocationRows)

		_, err = d.service.Commit(ctx, "bill-1", []billing.Row{{TenantID: "t1", Method: billing.MethodPercentage}})
		assert.ErrorIs(t, err, billing.ErrNothingAllocated)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("zero rows are not persisted", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)
		d.allocations.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption, Percentage: dec("100"), Amount: dec("1000")},
			{TenantID: "t2", Method: billing.MethodPercentage},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Written)
		d.allocations.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("write failure stops and reports partial count", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)
		d.allocations.On("Create", mock.Anything, mock.MatchedBy(func(a *billing.Allocation) bool {
			return a.TenantID == "t1"
		})).Return(nil).Once()
		d.allocations.On("Create", mock.Anything, mock.MatchedBy(func(a *billing.Allocation) bool {
			return a.TenantID == "t2"
		})).Return(errors.New("permission denied")).Once()

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("300")},
			{TenantID: "t2", Method: billing.MethodFixed, Amount: dec("300")},
			{TenantID: "t3", Method: billing.MethodFixed, Amount: dec("400")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.Equal(t, 1, result.Written)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, billing.BillStatusValidated, result.Status)
		d.allocations.AssertNumberOfCalls(t, "Create", 2)
		d.bills.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, d.commitCount(t, metrics.ResultFailed))
	})

	t.Run("status update failure keeps allocations", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)
		d.allocations.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(errors.New("deadline exceeded"))

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption, Percentage: dec("100"), Amount: dec("1000")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bill status update failed")
		assert.Contains(t, err.Error(), "deadline exceeded")
		assert.Equal(t, 1, result.Written)
	})

	t.Run("already allocated bill is rejected", func(t *testing.T) {
		d := newTestService(t)
		bill := newBill("1000")
		bill.Status = billing.BillStatusAllocated
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(bill, nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption, Percentage: dec("100"), Amount: dec("1000")},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("busy bill", func(t *testing.T) {
		d := newTestService(t)
		d.service.locker = busyLocker{}
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption, Percentage: dec("100"), Amount: dec("1000")},
		})
		assert.ErrorIs(t, err, ErrBillBusy)
	})
}

func TestService_CommitRowIntegrity(t *testing.T) {
	ctx := context.Background()

	t.Run("negative row cannot offset an over-allocation", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("1500")},
			{TenantID: "t2", Method: billing.MethodFixed, Amount: dec("-500")},
		})
		assert.ErrorIs(t, err, billing.ErrNegativeAmount)
		assert.Zero(t, result.Written)
		assert.Equal(t, billing.BillStatusValidated, result.Status)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		d.bills.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, d.commitCount(t, metrics.ResultRejected))
	})

	t.Run("percentage above 100 is rejected", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodPercentage, Percentage: dec("130")},
			{TenantID: "t2", Method: billing.MethodFixed, Amount: dec("-300")},
		})
		assert.ErrorIs(t, err, billing.ErrPercentageOutOfRange)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate tenant is rejected before any write", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("500")},
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("500")},
		})
		assert.ErrorIs(t, err, billing.ErrDuplicateTenant)
		assert.Contains(t, err.Error(), "Woolworths")
		assert.Zero(t, result.Written)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("tenant from another property is rejected", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("500")},
			{TenantID: "t9", Method: billing.MethodFixed, Amount: dec("500")},
		})
		assert.ErrorIs(t, err, billing.ErrUnknownTenant)
		assert.Contains(t, err.Error(), "t9")
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown method is rejected before any write", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("500")},
			{TenantID: "t2", Method: "split", Amount: dec("500")},
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_METHOD", domainErr.Code)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("bill without property", func(t *testing.T) {
		d := newTestService(t)
		bill := newBill("1000")
		bill.PropertyID = ""
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(bill, nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption},
		})
		assert.ErrorIs(t, err, ErrBillNoProperty)
		d.tenants.AssertNotCalled(t, "FindByProperty", mock.Anything, mock.Anything)
	})
}

func TestService_CommitRecalculatesDerivedRows(t *testing.T) {
	ctx := context.Background()

	t.Run("gla rows use stored gla whatever the client sent", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)
		var written []*billing.Allocation
		d.allocations.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				written = append(written, args.Get(1).(*billing.Allocation))
			}).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

		result, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", TenantName: "Renamed", GLA: dec("900"), Method: billing.MethodGLAProrata,
				Percentage: dec("90"), Amount: dec("900")},
			{TenantID: "t2", GLA: dec("100"), Method: billing.MethodGLAProrata,
				Percentage: dec("10"), Amount: dec("100")},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Written)

		require.Len(t, written, 2)
		assert.Equal(t, "Woolworths", written[0].TenantName)
		assert.True(t, written[0].Percentage.Equal(dec("30")), "percentage %s", written[0].Percentage)
		assert.True(t, written[0].Amount.Equal(dec("300")), "amount %s", written[0].Amount)
		assert.Equal(t, "Pick n Pay", written[1].TenantName)
		assert.True(t, written[1].Percentage.Equal(dec("70")))
		assert.True(t, written[1].Amount.Equal(dec("700")))
	})

	t.Run("full absorption is forced to the bill total", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)
		var written *billing.Allocation
		d.allocations.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				written = args.Get(1).(*billing.Allocation)
			}).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption, Percentage: dec("40"), Amount: dec("1")},
		})
		require.NoError(t, err)
		require.NotNil(t, written)
		assert.True(t, written.Percentage.Equal(dec("100")))
		assert.True(t, written.Amount.Equal(dec("1000")))
	})

	t.Run("unbalanced after recalculation is rejected", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups(nil)

		// stored gla gives t1 300 of the 800 m² on these rows, so R375.00
		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodGLAProrata, Percentage: dec("100"), Amount: dec("1000")},
			{TenantID: "t3", Method: billing.MethodFixed, Amount: dec("0")},
		})
		assert.ErrorIs(t, err, billing.ErrUnbalanced)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_CommitRetry(t *testing.T) {
	ctx := context.Background()
	rows := []billing.Row{
		{TenantID: "t1", Method: billing.MethodFixed, Amount: dec("300")},
		{TenantID: "t2", Method: billing.MethodFixed, Amount: dec("300")},
		{TenantID: "t3", Method: billing.MethodFixed, Amount: dec("400")},
	}

	t.Run("skips tenants a previous attempt already wrote", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups([]billing.Allocation{
			{BillID: "bill-1", TenantID: "t1", TenantName: "Woolworths", Method: billing.MethodFixed, Amount: dec("300")},
		})
		var tenants []string
		d.allocations.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				tenants = append(tenants, args.Get(1).(*billing.Allocation).TenantID)
			}).Return(nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

		result, err := d.service.Commit(ctx, "bill-1", rows)
		require.NoError(t, err)
		assert.Equal(t, []string{"t2", "t3"}, tenants)
		assert.Equal(t, 2, result.Written)
		assert.Equal(t, 1, result.Existing)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, billing.BillStatusAllocated, result.Status)
	})

	t.Run("every row already written only marks the bill", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		existing := make([]billing.Allocation, 0, len(rows))
		for _, r := range rows {
			existing = append(existing, billing.Allocation{
				BillID: "bill-1", TenantID: r.TenantID, Method: r.Method, Amount: r.Amount,
			})
		}
		d.expectCommitLookups(existing)
		d.bills.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil)

		result, err := d.service.Commit(ctx, "bill-1", rows)
		require.NoError(t, err)
		assert.Zero(t, result.Written)
		assert.Equal(t, 3, result.Existing)
		assert.Equal(t, billing.BillStatusAllocated, result.Status)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("stored allocation that disagrees with the rows", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups([]billing.Allocation{
			{BillID: "bill-1", TenantID: "t1", TenantName: "Woolworths", Method: billing.MethodFixed, Amount: dec("500")},
		})

		result, err := d.service.Commit(ctx, "bill-1", rows)
		assert.ErrorIs(t, err, billing.ErrAllocationConflict)
		assert.Contains(t, err.Error(), "R500.00")
		assert.Zero(t, result.Written)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		d.bills.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})

	t.Run("stored allocation for a tenant no longer in the rows", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.expectCommitLookups([]billing.Allocation{
			{BillID: "bill-1", TenantID: "t2", TenantName: "Pick n Pay", Method: billing.MethodFixed, Amount: dec("300")},
		})

		_, err := d.service.Commit(ctx, "bill-1", []billing.Row{
			{TenantID: "t1", Method: billing.MethodFullAbsorption},
		})
		assert.ErrorIs(t, err, billing.ErrAllocationConflict)
		d.allocations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return lock.ErrLockBusy
}

func TestService_FlagException(t *testing.T) {
	t.Run("flags a validated bill", func(t *testing.T) {
		d := newTestService(t)
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
		d.bills.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(b *billing.Bill) bool {
			return b.Status == billing.BillStatusException && b.ExceptionReason == "meter reading disputed"
		})).Return(nil)

		bill, err := d.service.FlagException(context.Background(), "bill-1", "  meter reading disputed ")
		require.NoError(t, err)
		assert.Equal(t, billing.BillStatusException, bill.Status)
		d.bills.AssertExpectations(t)
	})

	t.Run("rejects allocated bill", func(t *testing.T) {
		d := newTestService(t)
		bill := newBill("1000")
		bill.Status = billing.BillStatusAllocated
		d.bills.On("FindByID", mock.Anything, "bill-1").Return(bill, nil)

		_, err := d.service.FlagException(context.Background(), "bill-1", "late")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		d.bills.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})
}

func TestService_ListAllocations(t *testing.T) {
	d := newTestService(t)
	d.bills.On("FindByID", mock.Anything, "bill-1").Return(newBill("1000"), nil)
	d.allocations.On("FindByBill", mock.Anything, "bill-1").Return([]billing.Allocation{
		{BillID: "bill-1", TenantID: "t1", Amount: dec("1000")},
	}, nil)

	allocs, err := d.service.ListAllocations(context.Background(), "bill-1")
	require.NoError(t, err)
	assert.Len(t, allocs, 1)
}
