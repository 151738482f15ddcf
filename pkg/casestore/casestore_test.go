package casestore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

func report(id string, at time.Time) models.DetailedReport {
	return models.DetailedReport{
		AnalysisResult: models.AnalysisResult{
			Case:      models.Case{CaseID: id, AnalysisType: models.AnalysisPneumonia, Diagnosis: "Pneumonia", Probability: 0.9, Timestamp: at, Agent: "LungAgent"},
			Artifacts: &models.Artifacts{HeatmapPNG: "data:image/png;base64,AA"},
			Trace:     []models.TraceStep{{Step: models.StepPlan, Action: "plan"}},
		},
		Profiler: models.ProfilerMetrics{TotalLatency: 0.2},
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, report("a", base)))
	require.NoError(t, repo.Save(ctx, report("b", base.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, report("a", base)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].CaseID)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	if diff := cmp.Diff(report("a", base), got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRoundTrip(t *testing.T) {
	want := report("rt", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	rec, err := toRecord(want)
	require.NoError(t, err)
	assert.Equal(t, "analysis_cases", rec.TableName())

	got, err := rec.report()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type countingRepo struct {
	*MemoryRepository
	gets atomic.Int32
}

func (r *countingRepo) Get(ctx context.Context, id string) (models.DetailedReport, error) {
	r.gets.Add(1)
	return r.MemoryRepository.Get(ctx, id)
}

func TestCachedRepositoryServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{MemoryRepository: NewMemoryRepository()}
	cache := &memCache{data: map[string][]byte{}}
	repo := NewCachedRepository(inner, cache, time.Minute)

	require.NoError(t, repo.Save(ctx, report("c1", time.Now().UTC())))
	_, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.gets.Load())

	// save invalidates
	require.NoError(t, repo.Save(ctx, report("c1", time.Now().UTC())))
	_, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.gets.Load())

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedRepositoryFallsThroughWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{MemoryRepository: NewMemoryRepository()}
	repo := NewCachedRepository(inner, &memCache{data: map[string][]byte{}, fail: true}, 0)

	require.NoError(t, repo.Save(ctx, report("c2", time.Now().UTC())))
	got, err := repo.Get(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.CaseID)
}
