package screens

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/format"
)

type DashboardStats struct {
	Total         int
	Positive      int
	Normal        int
	AvgConfidence int // whole percent
}

type DashboardView struct {
	State  datastore.State
	Cases  []models.Case
	Stats  DashboardStats
	Notice string
	Error  string
}

type Dashboard struct {
	store *datastore.Store[[]models.Case]
}

func NewDashboard(src CaseLister, seedCases []models.Case) *Dashboard {
	return &Dashboard{
		store: datastore.New[[]models.Case]("cases", src.ListCases, datastore.WithSeed(seedCases)),
	}
}

// Load fetches the case history and builds the view. Cases are ordered
// newest first on a copy; the store's cached slice is never reordered.
func (d *Dashboard) Load(ctx context.Context) DashboardView {
	res := d.store.Load(ctx)
	view := DashboardView{State: res.State, Notice: degradedNotice(res)}
	if res.State == datastore.StateFailed {
		view.Error = res.Reason
		return view
	}
	if !res.HasValue() {
		return view
	}
	view.Cases = SortNewestFirst(res.Value)
	view.Stats = Stats(view.Cases)
	return view
}

func (d *Dashboard) Close() {
	d.store.Close()
}

// SortNewestFirst returns a copy of cases ordered by timestamp descending.
// Equal timestamps keep their input order.
func SortNewestFirst(cases []models.Case) []models.Case {
	out := slices.Clone(cases)
	slices.SortStableFunc(out, func(a, b models.Case) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

func Stats(cases []models.Case) DashboardStats {
	s := DashboardStats{Total: len(cases)}
	if len(cases) == 0 {
		return s
	}
	var sum float64
	for _, c := range cases {
		if c.IsPositive() {
			s.Positive++
		} else {
			s.Normal++
		}
		sum += c.Probability
	}
	s.AvgConfidence = int(math.Round(sum / float64(len(cases)) * 100))
	return s
}

func RenderDashboard(v DashboardView, mode format.Mode) string {
	var b strings.Builder
	if v.Notice != "" {
		fmt.Fprintf(&b, "! %s\n\n", v.Notice)
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "Failed to load case history: %s\n", v.Error)
		return b.String()
	}

	stats := format.NewTable(mode)
	stats.Header("Total Cases", "Positive Findings", "Normal Results", "Avg Confidence")
	stats.Row(v.Stats.Total, v.Stats.Positive, v.Stats.Normal, fmt.Sprintf("%d%%", v.Stats.AvgConfidence))
	b.WriteString(stats.String())
	b.WriteString("\n\n")

	if len(v.Cases) == 0 {
		b.WriteString("No cases yet. Run `console analyze` to start.\n")
		return b.String()
	}

	tb := format.NewTable(mode)
	tb.Title("Recent Cases")
	tb.Header("Case ID", "Patient", "Type", "Diagnosis", "Confidence", "Agent", "Date")
	for _, c := range v.Cases {
		tb.Row(
			format.ShortID(c.CaseID),
			format.OrPlaceholder(c.PatientID),
			string(c.AnalysisType),
			c.Diagnosis,
			format.Percent(c.Probability),
			c.Agent,
			format.Date(c.Timestamp),
		)
	}
	tb.Columns(format.ColumnConfig{Number: 5, Align: format.AlignRight})
	b.WriteString(tb.String())
	b.WriteString("\nView a report with `console report <case-id>`.\n")
	return b.String()
}
