package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visit-trip-linker/internal/models"
)

func sampleRun() (models.Run, []models.MatchRecord) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	run := models.Run{ID: uuid.NewString(), Source: "test", Visits: 2, TripLegs: 2, CreatedAt: day}
	recs := []models.MatchRecord{
		{
			VisitID: "v1", CareEpisodeID: "p1",
			CarStartTime: day.Add(9 * time.Hour), CarEndTime: day.Add(9*time.Hour + 45*time.Minute),
			DurationMinutes: 45, DistanceMeters: 100, DistanceBucket: 5, StartTimeBucket: 4,
			Classification: models.Matched,
		},
		{
			VisitID: "v2", CareEpisodeID: "p2", CarStartTime: day, CarEndTime: day,
			DistanceMeters: 1_000_000, Classification: models.Unmatched,
		},
	}
	return run, recs
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	run, recs := sampleRun()

	require.NoError(t, s.SaveRun(ctx, run, recs))
	recs[0].VisitID = "mutated"

	got, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v1", got[0].VisitID)

	meta, ok := s.Run(run.ID)
	assert.True(t, ok)
	assert.Equal(t, "test", meta.Source)

	_, err = s.Records(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

type failingStore struct{ err error }

func (f failingStore) SaveRun(context.Context, models.Run, []models.MatchRecord) error { return f.err }
func (f failingStore) Records(context.Context, string) ([]models.MatchRecord, error) {
	return nil, f.err
}

func TestMultiStoreWritesAllAndJoinsErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	boom := errors.New("boom")
	s := MultiStore{mem, failingStore{err: boom}}
	run, recs := sampleRun()

	err := s.SaveRun(ctx, run, recs)
	assert.ErrorIs(t, err, boom)

	got, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = MultiStore{}.Records(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRedisStoreIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s := NewRedisStore(addr, os.Getenv("REDIS_PASSWORD"), "linker-test", time.Minute)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	run, recs := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, recs))

	got, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[0].VisitID, got[0].VisitID)
	assert.True(t, recs[0].CarStartTime.Equal(got[0].CarStartTime))

	_, err = s.Records(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	run, recs := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, recs))

	got, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.Matched, got[0].Classification)
	assert.Equal(t, 1_000_000, got[1].DistanceMeters)

	_, err = s.Records(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
