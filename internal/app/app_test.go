package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visit-trip-linker/internal/config"
	"github.com/example/visit-trip-linker/internal/matcher"
	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/storage"
)

func localConfig() config.ServerConfig {
	return config.ServerConfig{Match: matcher.DefaultConfig(), DistanceModel: "geodesic", Workers: 2}
}

func TestNewInMemory(t *testing.T) {
	a, err := New(context.Background(), localConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &storage.MemoryStore{}, a.Store)
	assert.Nil(t, a.Source)
	assert.Nil(t, a.Linker.Publisher)
	assert.NoError(t, a.Ready(context.Background()))

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	res, err := a.Linker.Link(context.Background(), "test", models.Batch{
		Visits: []models.Visit{{VisitID: "v1", CareEpisodeID: "p1", FinishedAt: day.Add(10 * time.Hour)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.NoTripsThisDay)

	got, err := a.Store.Records(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewRejectsUnknownDistanceModel(t *testing.T) {
	cfg := localConfig()
	cfg.DistanceModel = "manhattan"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestReadyAndCloseJoinErrors(t *testing.T) {
	var order []string
	a := &App{
		checks: map[string]func(context.Context) error{
			"redis": func(context.Context) error { return errors.New("connection refused") },
			"pg":    func(context.Context) error { return nil },
		},
		closers: []func() error{
			func() error { order = append(order, "first"); return nil },
			func() error { order = append(order, "second"); return errors.New("already closed") },
		},
	}
	err := a.Ready(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: connection refused")

	err = a.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, a.Close())
}
