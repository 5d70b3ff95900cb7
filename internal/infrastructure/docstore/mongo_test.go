package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func newMockMongoStore(mt *mtest.T) *MongoStore {
	return NewMongoStoreWithClient(mt.Client, MongoConfig{Database: "propbill", MaxBatchOps: 3}, zap.NewNop())
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create returns generated id", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := store.Create(context.Background(), "providers", Document{"name": "Eskom"})

		require.NoError(mt, err)
		assert.NotEmpty(mt, id)
	})

	mt.Run("create surfaces write errors", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		_, err := store.Create(context.Background(), "providers", Document{"name": "Eskom"})

		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "duplicate key")
	})

	mt.Run("get decodes and normalizes", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "propbill.bills", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "bill-1"},
			{Key: "status", Value: "validated"},
			{Key: "totalAmount", Value: 1000.5},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(created)},
			{Key: "utilityTypes", Value: bson.A{"rates", "water_sanitation"}},
		}))

		snap, err := store.Get(context.Background(), "bills", "bill-1")

		require.NoError(mt, err)
		assert.Equal(mt, "bill-1", snap.ID)
		assert.Equal(mt, "validated", snap.Data["status"])
		assert.Equal(mt, 1000.5, snap.Data["totalAmount"])
		assert.Equal(mt, created, snap.Data["createdAt"])
		assert.Equal(mt, []any{"rates", "water_sanitation"}, snap.Data["utilityTypes"])
		assert.NotContains(mt, snap.Data, "_id")
	})

	mt.Run("get missing document", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "propbill.bills", mtest.FirstBatch))

		_, err := store.Get(context.Background(), "bills", "nope")

		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update unmatched document", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		err := store.Update(context.Background(), "bills", "nope", Document{"status": "allocated"})

		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update matched document", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		err := store.Update(context.Background(), "bills", "bill-1", Document{"status": "allocated"})

		assert.NoError(mt, err)
	})

	mt.Run("find where returns every match", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		first := mtest.CreateCursorResponse(1, "propbill.tenants", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "t1"}, {Key: "name", Value: "Spar"}, {Key: "gla", Value: int32(300)}})
		next := mtest.CreateCursorResponse(0, "propbill.tenants", mtest.NextBatch,
			bson.D{{Key: "_id", Value: "t2"}, {Key: "name", Value: "Clicks"}, {Key: "gla", Value: int32(700)}})
		mt.AddMockResponses(first, next)

		snaps, err := store.FindWhere(context.Background(), "tenants", "propertyId", "prop-1")

		require.NoError(mt, err)
		require.Len(mt, snaps, 2)
		assert.Equal(mt, "t1", snaps[0].ID)
		assert.Equal(mt, int64(300), snaps[0].Data["gla"])
		assert.Equal(mt, "Clicks", snaps[1].Data["name"])
	})

	mt.Run("batch writes one bulk per collection", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 2}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}},
		)

		batch := store.NewBatch()
		_, err := batch.Set("providers", Document{"name": "A"})
		require.NoError(mt, err)
		_, err = batch.Set("properties", Document{"bpNumber": "1"})
		require.NoError(mt, err)
		_, err = batch.Set("providers", Document{"name": "B"})
		require.NoError(mt, err)

		_, err = batch.Set("providers", Document{"name": "C"})
		assert.ErrorIs(mt, err, ErrBatchFull)

		require.NoError(mt, batch.Commit(context.Background()))
		assert.ErrorIs(mt, batch.Commit(context.Background()), ErrBatchCommitted)
	})
}

func TestNormalizeBSON(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	got := normalizeBSON(primitive.M{
		"when":   primitive.NewDateTimeFromTime(ts),
		"nested": primitive.D{{Key: "n", Value: int32(4)}},
		"list":   primitive.A{int32(1), "two"},
	})

	assert.Equal(t, map[string]any{
		"when":   ts,
		"nested": map[string]any{"n": int64(4)},
		"list":   []any{int64(1), "two"},
	}, got)
}
