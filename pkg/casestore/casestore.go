// Package casestore persists analysed cases and their detailed reports.
package casestore

import (
	"context"
	"errors"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// ErrNotFound is returned by Get for an unknown case id.
var ErrNotFound = errors.New("case not found")

type Repository interface {
	Save(ctx context.Context, report models.DetailedReport) error
	// List returns case summaries, newest first.
	List(ctx context.Context) ([]models.Case, error)
	Get(ctx context.Context, caseID string) (models.DetailedReport, error)
	Count(ctx context.Context) (int64, error)
}
