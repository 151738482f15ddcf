package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/workflow"
)

type AnalyzeView struct {
	workflow.State
	// ReportCaseID is set after a successful submission; the report screen
	// opens with it.
	ReportCaseID string
}

// Analyze drives the upload workflow.
type Analyze struct {
	wf     *workflow.Workflow
	picker workflow.FilePicker
}

func NewAnalyze(submitter workflow.Submitter, picker workflow.FilePicker) *Analyze {
	return &Analyze{wf: workflow.New(submitter, picker), picker: picker}
}

func (a *Analyze) SelectFile(path string) error {
	return a.picker.SelectFile(path)
}

func (a *Analyze) ClearFile() {
	a.picker.ClearFile()
}

func (a *Analyze) SelectType(t models.AnalysisType) error {
	return a.wf.SelectType(t)
}

// Submit runs the workflow and returns the resulting view. The bool is false
// when the submission was refused by the workflow guard.
func (a *Analyze) Submit(ctx context.Context) (AnalyzeView, bool) {
	ok := a.wf.Submit(ctx)
	return a.View(), ok
}

func (a *Analyze) Reset() {
	a.wf.Reset()
}

func (a *Analyze) View() AnalyzeView {
	v := AnalyzeView{State: a.wf.Snapshot()}
	if v.Phase == workflow.PhaseSucceeded && v.Result != nil {
		v.ReportCaseID = v.Result.CaseID
	}
	return v
}

func RenderAnalyze(v AnalyzeView, mode format.Mode) string {
	var b strings.Builder
	switch v.Phase {
	case workflow.PhaseSubmitting:
		fmt.Fprintf(&b, "Analyzing %s for %s...\n", v.FileName, v.AnalysisType)
	case workflow.PhaseFailed:
		fmt.Fprintf(&b, "! %s\n", v.Error)
		if v.HasFile {
			fmt.Fprintf(&b, "  %s is still staged; retry with the same file.\n", v.FileName)
		}
	case workflow.PhaseSucceeded:
		res := v.Result
		tb := format.NewTable(mode)
		tb.Title("Analysis Result")
		tb.Header("Field", "Value")
		tb.Row("Case ID", res.CaseID)
		tb.Row("Diagnosis", res.Diagnosis)
		tb.Row("Confidence", format.Percent(res.Probability))
		tb.Row("Agent", res.Agent)
		if res.InferenceTime > 0 {
			tb.Row("Inference Time", format.Seconds(res.InferenceTime))
		}
		finding := "Normal"
		if res.IsPositive() {
			finding = "Positive finding"
		}
		tb.Row("Finding", finding)
		b.WriteString(tb.String())
		fmt.Fprintf(&b, "\nFull report: console report %s\n", v.ReportCaseID)
	default:
		fmt.Fprintf(&b, "File: %s\nType: %s\n", format.OrPlaceholder(v.FileName), format.OrPlaceholder(string(v.AnalysisType)))
	}
	return b.String()
}
