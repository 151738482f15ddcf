package screens

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/backend"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/seed"
)

type caseFunc func(ctx context.Context) ([]models.Case, error)

func (f caseFunc) ListCases(ctx context.Context) ([]models.Case, error) { return f(ctx) }

func TestDashboardFallsBackToSeedOnTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := backend.NewClient(srv.URL, &http.Client{Timeout: 50 * time.Millisecond})
	now := time.Now()
	seedCases := seed.Default(now).Cases
	// reversed so the screen has to sort
	shuffled := []models.Case{seedCases[2], seedCases[0], seedCases[1]}

	d := NewDashboard(client, shuffled)
	defer d.Close()
	view := d.Load(context.Background())

	assert.Equal(t, datastore.StateDegraded, view.State)
	assert.Equal(t, NoticeSample, view.Notice)
	require.Len(t, view.Cases, 3)
	assert.Equal(t, []string{"case-001", "case-002", "case-003"}, caseIDs(view.Cases))

	out := RenderDashboard(view, format.ASCII)
	assert.Contains(t, out, NoticeSample)
	assert.Contains(t, out, "92%")
	assert.Contains(t, out, "8%")
	assert.Contains(t, out, "85%")
	assert.Contains(t, out, "Cardiomegaly")
}

func TestDashboardServesCacheAfterFreshLoad(t *testing.T) {
	now := time.Now()
	live := []models.Case{{CaseID: "live-1", Diagnosis: "Normal", Probability: 0.2, Timestamp: now}}
	fail := false
	d := NewDashboard(caseFunc(func(ctx context.Context) ([]models.Case, error) {
		if fail {
			return nil, fetch.Connection("list cases", errors.New("refused"))
		}
		return live, nil
	}), seed.Default(now).Cases)
	defer d.Close()

	first := d.Load(context.Background())
	assert.Equal(t, datastore.StateFresh, first.State)
	assert.Empty(t, first.Notice)

	fail = true
	second := d.Load(context.Background())
	assert.Equal(t, datastore.StateDegraded, second.State)
	assert.Equal(t, NoticeCached, second.Notice)
	assert.Equal(t, []string{"live-1"}, caseIDs(second.Cases))
}

func TestSortNewestFirstIsStableAndCopies(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []models.Case{
		{CaseID: "old", Timestamp: base},
		{CaseID: "tie-a", Timestamp: base.Add(time.Hour)},
		{CaseID: "new", Timestamp: base.Add(2 * time.Hour)},
		{CaseID: "tie-b", Timestamp: base.Add(time.Hour)},
	}
	out := SortNewestFirst(in)

	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, caseIDs(out))
	assert.Equal(t, []string{"old", "tie-a", "new", "tie-b"}, caseIDs(in), "input must not be reordered")
}

func TestStats(t *testing.T) {
	s := Stats(seed.Default(time.Now()).Cases)
	assert.Equal(t, DashboardStats{Total: 3, Positive: 2, Normal: 1, AvgConfidence: 62}, s)
	assert.Equal(t, DashboardStats{}, Stats(nil))
}

func caseIDs(cases []models.Case) []string {
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.CaseID
	}
	return ids
}
