package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store backend must share.
// The store must have MaxBatchOps of at least 2.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		id, err := store.Create(ctx, "providers", Document{"name": "City Of Joburg", "type": "municipality"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		snap, err := store.Get(ctx, "providers", id)
		require.NoError(t, err)
		assert.Equal(t, id, snap.ID)
		assert.Equal(t, "City Of Joburg", snap.Data["name"])
		assert.Equal(t, "municipality", snap.Data["type"])
	})

	t.Run("create requires collection", func(t *testing.T) {
		_, err := store.Create(ctx, "", Document{"name": "x"})
		assert.ErrorIs(t, err, ErrEmptyCollection)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "providers", "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update merges fields", func(t *testing.T) {
		id, err := store.Create(ctx, "bills", Document{"status": "validated", "totalAmount": 1000.0})
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, "bills", id, Document{"status": "allocated"}))

		snap, err := store.Get(ctx, "bills", id)
		require.NoError(t, err)
		assert.Equal(t, "allocated", snap.Data["status"])
		assert.Equal(t, 1000.0, snap.Data["totalAmount"])
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, "bills", "does-not-exist", Document{"status": "allocated"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find where matches on one field", func(t *testing.T) {
		a, err := store.Create(ctx, "tenants", Document{"name": "Spar", "propertyId": "p1"})
		require.NoError(t, err)
		b, err := store.Create(ctx, "tenants", Document{"name": "Clicks", "propertyId": "p1"})
		require.NoError(t, err)
		_, err = store.Create(ctx, "tenants", Document{"name": "Woolworths", "propertyId": "p2"})
		require.NoError(t, err)
		_, err = store.Create(ctx, "allocations", Document{"propertyId": "p1"})
		require.NoError(t, err)

		snaps, err := store.FindWhere(ctx, "tenants", "propertyId", "p1")
		require.NoError(t, err)

		ids := make([]string, 0, len(snaps))
		for _, s := range snaps {
			ids = append(ids, s.ID)
		}
		assert.ElementsMatch(t, []string{a, b}, ids)

		none, err := store.FindWhere(ctx, "tenants", "propertyId", "p9")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("batch respects limit and commits", func(t *testing.T) {
		batch := store.NewBatch()
		ids := make([]string, 0, store.MaxBatchOps())
		for i := 0; i < store.MaxBatchOps(); i++ {
			id, err := batch.Set("properties", Document{"bpNumber": "bp", "seq": float64(i)})
			require.NoError(t, err)
			ids = append(ids, id)
		}
		assert.Equal(t, store.MaxBatchOps(), batch.Len())

		_, err := batch.Set("properties", Document{"bpNumber": "overflow"})
		assert.ErrorIs(t, err, ErrBatchFull)

		require.NoError(t, batch.Commit(ctx))
		for _, id := range ids {
			_, err := store.Get(ctx, "properties", id)
			assert.NoError(t, err)
		}

		assert.ErrorIs(t, batch.Commit(ctx), ErrBatchCommitted)
		_, err = batch.Set("properties", Document{})
		assert.ErrorIs(t, err, ErrBatchCommitted)
	})

	t.Run("empty batch commits", func(t *testing.T) {
		assert.NoError(t, store.NewBatch().Commit(ctx))
	})
}
