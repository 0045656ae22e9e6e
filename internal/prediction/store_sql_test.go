package prediction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightontime/flightontime/internal/db"
	"github.com/flightontime/flightontime/internal/prediction"
)

func openStore(t *testing.T) *prediction.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return prediction.NewSQLStore(dbh)
}

func rec(id, airline string, delayed bool, at time.Time) prediction.Record {
	return prediction.Record{
		ID: id, Airline: airline, Origin: "JFK", Destination: "LAX",
		Departure: "2024-01-15T14:30:00", DistanceKM: 3980, HourBucket: "tarde",
		Delayed: delayed, Probability: 0.7, Features: []float64{0, 0, 14, 2, 0, 0.796, 0},
		EncoderVersion: "1.0.0", CreatedAt: at,
	}
}

func TestSQLStore_SaveGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Unix(1705330000, 0)

	require.NoError(t, s.Save(ctx, rec("p1", "AA", true, at)))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec("p1", "AA", true, at), got)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, prediction.ErrNotFound)
}

func TestSQLStore_GetCorruptFeatures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	s := prediction.NewSQLStore(dbh)

	require.NoError(t, s.Save(ctx, rec("bad", "AA", true, time.Unix(1705330000, 0))))
	_, err = dbh.ExecContext(ctx, `UPDATE predictions SET features_json = $1 WHERE id = $2`, "{not json", "bad")
	require.NoError(t, err)

	_, err = s.Get(ctx, "bad")
	assert.ErrorContains(t, err, "decode features")

	_, err = s.List(ctx, prediction.ListOpts{})
	assert.Error(t, err)
}

func TestSQLStore_ListFiltersAndOrders(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Unix(1705330000, 0)

	require.NoError(t, s.Save(ctx, rec("p1", "AA", true, base)))
	require.NoError(t, s.Save(ctx, rec("p2", "DL", false, base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, rec("p3", "AA", false, base.Add(2*time.Minute))))

	all, err := s.List(ctx, prediction.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p3", all[0].ID, "newest first")

	aa, err := s.List(ctx, prediction.ListOpts{Airline: "aa"})
	require.NoError(t, err)
	assert.Len(t, aa, 2)

	yes := true
	delayed, err := s.List(ctx, prediction.ListOpts{Delayed: &yes})
	require.NoError(t, err)
	require.Len(t, delayed, 1)
	assert.Equal(t, "p1", delayed[0].ID)

	page, err := s.List(ctx, prediction.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p2", page[0].ID)
}

func TestSQLStore_CountSince(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	midnight := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	total, delayed, err := s.CountSince(ctx, midnight)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, delayed)

	require.NoError(t, s.Save(ctx, rec("old", "AA", true, midnight.Add(-time.Minute))))
	require.NoError(t, s.Save(ctx, rec("a", "AA", true, midnight)))
	require.NoError(t, s.Save(ctx, rec("b", "AA", false, midnight.Add(time.Hour))))

	total, delayed, err = s.CountSince(ctx, midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), delayed)
}
