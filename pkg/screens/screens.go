// Package screens holds the console's screen controllers. Each one owns its
// datastores for the lifetime of a mount and builds a view model that the
// CLI renders as tables.
package screens

import (
	"context"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
)

type CaseLister interface {
	ListCases(ctx context.Context) ([]models.Case, error)
}

type ReportGetter interface {
	GetReport(ctx context.Context, caseID string) (models.DetailedReport, error)
}

type StatusGetter interface {
	GetSystemStatus(ctx context.Context) (models.SystemStatus, error)
}

// Notice text shown whenever a screen renders fallback data.
const (
	NoticeCached = "Unable to connect to backend. Showing cached data."
	NoticeSample = "Unable to connect to backend. Showing sample data."
)

func degradedNotice[T any](res datastore.LoadResult[T]) string {
	if res.State != datastore.StateDegraded {
		return ""
	}
	if res.FromSeed {
		return NoticeSample
	}
	return NoticeCached
}
