package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore(WithMemoryMaxBatchOps(5)))
}

func TestMemoryStore_FindWhereKeepsInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := store.Create(ctx, "allocations", Document{"billId": "bill-1", "tenantName": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	snaps, err := store.FindWhere(ctx, "allocations", "billId", "bill-1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, s := range snaps {
		assert.Equal(t, ids[i], s.ID)
	}
}

func TestMemoryStore_FailAfter(t *testing.T) {
	boom := errors.New("quota exceeded")
	store := NewMemoryStore(WithMemoryFailAfter(2, boom))
	ctx := context.Background()

	_, err := store.Create(ctx, "allocations", Document{"n": 1.0})
	require.NoError(t, err)

	batch := store.NewBatch()
	_, err = batch.Set("allocations", Document{"n": 2.0})
	require.NoError(t, err)
	require.NoError(t, batch.Commit(ctx))

	_, err = store.Create(ctx, "allocations", Document{"n": 3.0})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, store.Count("allocations"))
}

func TestMemoryStore_PutAndAll(t *testing.T) {
	store := NewMemoryStore()
	store.Put("bills", "bill-1", Document{"status": "validated"})
	store.Put("bills", "bill-1", Document{"status": "allocated"})

	all := store.All("bills")
	require.Len(t, all, 1)
	assert.Equal(t, "allocated", all[0].Data["status"])
	assert.Equal(t, []string{"bills"}, store.Collections())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	doc := Document{"name": "Spar"}

	id, err := store.Create(ctx, "tenants", doc)
	require.NoError(t, err)
	doc["name"] = "mutated"

	snap, err := store.Get(ctx, "tenants", id)
	require.NoError(t, err)
	snap.Data["name"] = "mutated again"

	again, err := store.Get(ctx, "tenants", id)
	require.NoError(t, err)
	assert.Equal(t, "Spar", again.Data["name"])
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, "tenants", Document{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.NewBatch().Commit(ctx), context.Canceled)
}
