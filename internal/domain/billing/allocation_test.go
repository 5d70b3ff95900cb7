package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocation(t *testing.T) {
	bill := newTestBill(BillStatusValidated)

	t.Run("creates pending allocation", func(t *testing.T) {
		row := Row{TenantID: "t1", TenantName: "Spar", Method: MethodGLAProrata, Percentage: dec("30"), Amount: dec("300")}

		a, err := NewAllocation(bill, row)

		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, bill.ID, a.BillID)
		assert.Equal(t, "prop-1", a.PropertyID)
		assert.Equal(t, "Spar", a.TenantName)
		assert.Equal(t, AllocationStatusPending, a.Status)
		assert.True(t, a.Amount.Equal(dec("300")))
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewAllocation(bill, Row{TenantID: "t1", Method: MethodFixed, Amount: dec("0")})
		assert.Error(t, err)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := NewAllocation(bill, Row{TenantID: "t1", Method: "split", Amount: dec("1")})
		assert.Error(t, err)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		_, err := NewAllocation(bill, Row{Method: MethodFixed, Amount: dec("1")})
		assert.Error(t, err)
	})

	t.Run("rejects missing bill", func(t *testing.T) {
		_, err := NewAllocation(nil, Row{TenantID: "t1", Method: MethodFixed, Amount: dec("1")})
		assert.Error(t, err)
	})
}

func TestAllocationStatus_IsValid(t *testing.T) {
	assert.True(t, AllocationStatusPending.IsValid())
	assert.True(t, AllocationStatusInvoiced.IsValid())
	assert.True(t, AllocationStatusPaid.IsValid())
	assert.False(t, AllocationStatus("void").IsValid())
}
