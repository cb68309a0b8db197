package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu         sync.Mutex
	cycles     []model.BillingCycle
	refreshed  []int64
	refreshErr map[int64]error
	renorm     int
	cutoffs    []time.Time
}

func (f *fakeStore) ListOpenCycles(context.Context) ([]model.BillingCycle, error) {
	return f.cycles, nil
}

func (f *fakeStore) RefreshAutoAssociations(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.refreshErr[id]; err != nil {
		return 0, err
	}
	f.refreshed = append(f.refreshed, id)
	return 1, nil
}

func (f *fakeStore) RenormalizeMerchants(context.Context, int) (store.RenormalizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renorm++
	return store.RenormalizeResult{Payments: 3}, nil
}

func (f *fakeStore) PruneOrders(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, nil
}

func testConfig() config.SchedulerConfig {
	return config.DefaultConfig().Scheduler
}

func TestNewRegistersDefaultJobs(t *testing.T) {
	s, err := New(&fakeStore{}, Options{Config: testConfig()})
	require.NoError(t, err)

	var names []string
	for _, j := range s.Jobs() {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{JobRefreshAutoAssociations, JobRenormalizeMerchants, JobPruneOrderCache}, names)
}

func TestNewSkipsEmptySpecs(t *testing.T) {
	cfg := testConfig()
	cfg.RenormalizeSpec = ""
	s, err := New(&fakeStore{}, Options{Config: cfg})
	require.NoError(t, err)
	assert.Len(t, s.Jobs(), 2)
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.PruneSpec = "every tuesday"
	_, err := New(&fakeStore{}, Options{Config: cfg})
	assert.ErrorContains(t, err, JobPruneOrderCache)

	cfg = testConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err = New(&fakeStore{}, Options{Config: cfg})
	assert.Error(t, err)
}

func TestRefreshAllOpenCycles(t *testing.T) {
	fs := &fakeStore{
		cycles:     []model.BillingCycle{{ID: 1}, {ID: 2}, {ID: 3}},
		refreshErr: map[int64]error{2: errors.New("boom")},
	}
	s, err := New(fs, Options{Config: testConfig()})
	require.NoError(t, err)

	err = s.RunNow(context.Background(), JobRefreshAutoAssociations)
	assert.ErrorContains(t, err, "cycle 2: boom")
	assert.Equal(t, []int64{1, 3}, fs.refreshed, "one failing cycle does not stop the rest")
}

func TestPruneUsesMaxAge(t *testing.T) {
	now := time.Date(2025, 5, 20, 4, 0, 0, 0, time.UTC)
	fs := &fakeStore{}
	s, err := New(fs, Options{
		Config:      testConfig(),
		OrderMaxAge: 48 * time.Hour,
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)

	require.NoError(t, s.RunNow(context.Background(), JobPruneOrderCache))
	require.Len(t, fs.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), fs.cutoffs[0])

	require.NoError(t, s.RunNow(context.Background(), JobRenormalizeMerchants))
	assert.Equal(t, 1, fs.renorm)

	assert.ErrorIs(t, s.RunNow(context.Background(), "nope"), ErrUnknownJob)
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "UTC"
	s, err := New(&fakeStore{}, Options{Config: cfg})
	require.NoError(t, err)

	s.Start()
	next := s.Next()
	require.Len(t, next, 3)
	for name, at := range next {
		assert.False(t, at.IsZero(), name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
