package screens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/redact"
)

const ReturnHint = "Return to Dashboard: console dashboard"

type ReportView struct {
	CaseID   string
	State    datastore.State
	Report   *models.DetailedReport
	NotFound bool
	Notice   string
	Error    string
	Hint     string
}

// Report shows one case. A store is created per case id on Open and closed
// on Close; unknown ids fail terminally with no fallback report.
type Report struct {
	src      ReportGetter
	redactor *redact.Redactor

	mu     sync.Mutex
	caseID string
	store  *datastore.Store[models.DetailedReport]
}

func NewReport(src ReportGetter, redactor *redact.Redactor) *Report {
	return &Report{src: src, redactor: redactor}
}

// Open mounts the screen for caseID, replacing any previous case.
func (r *Report) Open(caseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil && r.caseID == caseID {
		return
	}
	if r.store != nil {
		r.store.Close()
	}
	r.caseID = caseID
	r.store = datastore.New[models.DetailedReport]("report:"+caseID,
		func(ctx context.Context) (models.DetailedReport, error) {
			return r.src.GetReport(ctx, caseID)
		},
		datastore.WithTerminal[models.DetailedReport](fetch.IsNotFound),
	)
}

func (r *Report) Load(ctx context.Context) ReportView {
	r.mu.Lock()
	store, caseID := r.store, r.caseID
	r.mu.Unlock()
	if store == nil {
		return ReportView{State: datastore.StateFailed, Error: "No case selected", Hint: ReturnHint}
	}

	res := store.Load(ctx)
	view := ReportView{CaseID: caseID, State: res.State, Notice: degradedNotice(res)}
	switch {
	case res.HasValue():
		report := r.redactor.Report(res.Value)
		view.Report = &report
	case res.State == datastore.StateFailed:
		view.NotFound = fetch.IsNotFound(res.Err)
		view.Error = res.Reason
		if view.Error == "" {
			view.Error = "Failed to load report"
		}
		view.Hint = ReturnHint
	}
	return view
}

func (r *Report) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		r.store.Close()
		r.store = nil
	}
}

func RenderReport(v ReportView, mode format.Mode) string {
	var b strings.Builder
	if v.Report == nil {
		if v.Error != "" {
			fmt.Fprintf(&b, "! %s\n", v.Error)
		}
		if v.Hint != "" {
			fmt.Fprintf(&b, "  %s\n", v.Hint)
		}
		return b.String()
	}
	if v.Notice != "" {
		fmt.Fprintf(&b, "! %s\n\n", v.Notice)
	}

	rep := v.Report
	summary := format.NewTable(mode)
	summary.Title("Case " + rep.CaseID)
	summary.Header("Field", "Value")
	summary.Row("Patient", format.OrPlaceholder(rep.PatientID))
	summary.Row("Analysis", string(rep.AnalysisType))
	summary.Row("Diagnosis", rep.Diagnosis)
	summary.Row("Confidence", format.Percent(rep.Probability))
	summary.Row("Agent", rep.Agent)
	summary.Row("Inference Time", format.Seconds(rep.InferenceTime))
	summary.Row("Date", format.Date(rep.Timestamp))
	heatmap := "not available"
	if rep.Artifacts != nil && rep.Artifacts.HeatmapPNG != "" {
		heatmap = "available"
	}
	summary.Row("Heatmap", heatmap)
	b.WriteString(summary.String())
	b.WriteString("\n\n")

	if len(rep.Trace) > 0 {
		trace := format.NewTable(mode)
		trace.Title("Orchestrator Trace")
		trace.Header("#", "Step", "Agent", "Action", "Output", "Confidence")
		for i, step := range rep.Trace {
			trace.Row(i+1, string(step.Step), format.OrPlaceholder(step.Agent), step.Action,
				format.OrPlaceholder(step.Output), stepConfidence(step))
		}
		trace.Columns(format.ColumnConfig{Number: 4, MaxWidth: 60}, format.ColumnConfig{Number: 5, MaxWidth: 60})
		b.WriteString(trace.String())
		b.WriteString("\n\n")
	}

	prof := format.NewTable(mode)
	prof.Title("Profiler Metrics")
	prof.Header("Metric", "Value")
	prof.Row("Total Latency", format.Seconds(rep.Profiler.TotalLatency))
	prof.Row("Planner Latency", fmt.Sprintf("%.3fms", rep.Profiler.PlannerLatencyMs))
	prof.Row("Steps/sec", format.OptFloat(rep.Profiler.StepsPerSec, "%.0f"))
	prof.Row("GPU Utilisation", format.OptFloat(rep.Profiler.GPUUtilPercent, "%.0f%%"))
	prof.Row("Memory", format.OptFloat(rep.Profiler.MemoryMB, "%.0f MB"))
	b.WriteString(prof.String())
	b.WriteString("\n")

	if rep.SystemLog != "" {
		fmt.Fprintf(&b, "\nSystem log:\n%s\n", rep.SystemLog)
	}
	return b.String()
}

func stepConfidence(step models.TraceStep) string {
	if step.Confidence == nil {
		return format.Placeholder
	}
	return format.Percent(*step.Confidence)
}
