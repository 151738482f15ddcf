package casestore

import (
	"context"
	"slices"
	"sync"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// MemoryRepository keeps cases for the lifetime of the process.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	cases map[string]models.DetailedReport
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{cases: make(map[string]models.DetailedReport)}
}

func (r *MemoryRepository) Save(ctx context.Context, report models.DetailedReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cases[report.CaseID]; !exists {
		r.order = append(r.order, report.CaseID)
	}
	r.cases[report.CaseID] = report
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Case, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.cases[r.order[i]].Case)
	}
	slices.SortStableFunc(out, func(a, b models.Case) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, caseID string) (models.DetailedReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.cases[caseID]
	if !ok {
		return models.DetailedReport{}, ErrNotFound
	}
	return report, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.cases)), nil
}
