// Package workflow implements the single-submission analysis state machine:
// Idle -> Submitting -> Succeeded | Failed, and back to Idle on Reset.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/synaptica-ai/radiology-console/pkg/backend"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Submitter issues the remote analysis request.
type Submitter interface {
	SubmitAnalysis(ctx context.Context, analysisType models.AnalysisType, file backend.Upload) (models.AnalysisResult, error)
}

// State is a snapshot of the workflow for rendering.
type State struct {
	Phase        Phase
	AnalysisType models.AnalysisType
	FileName     string
	HasFile      bool
	Loading      bool
	Result       *models.AnalysisResult
	Error        string
	ErrorKind    fetch.Kind
}

// CanSubmit mirrors the submit button: enabled only when idle with both a
// file and a type staged.
func (s State) CanSubmit() bool {
	return s.Phase == PhaseIdle && s.HasFile && s.AnalysisType != ""
}

type Workflow struct {
	submitter Submitter
	picker    FilePicker

	mu           sync.Mutex
	phase        Phase
	analysisType models.AnalysisType
	result       *models.AnalysisResult
	errMsg       string
	errKind      fetch.Kind
}

func New(submitter Submitter, picker FilePicker) *Workflow {
	return &Workflow{submitter: submitter, picker: picker}
}

// SelectType stages the analysis type. The selection is frozen while a
// submission is in flight.
func (w *Workflow) SelectType(t models.AnalysisType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown analysis type %q", t)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == PhaseSubmitting {
		return fmt.Errorf("cannot change analysis type while submitting")
	}
	w.analysisType = t
	return nil
}

// Submit performs exactly one analysis request. It returns false, without
// any remote call, unless the workflow is idle with a file and a type
// staged. A started submission runs to completion.
func (w *Workflow) Submit(ctx context.Context) bool {
	w.mu.Lock()
	if w.phase != PhaseIdle || w.analysisType == "" {
		w.mu.Unlock()
		return false
	}
	file, ok := w.picker.Selected()
	if !ok {
		w.mu.Unlock()
		return false
	}
	analysisType := w.analysisType
	w.phase = PhaseSubmitting
	w.result = nil
	w.errMsg = ""
	w.errKind = 0
	w.mu.Unlock()

	log := logger.Log.WithFields(map[string]interface{}{
		"analysis_type": analysisType,
		"file":          file.Name,
	})
	log.Info("submitting analysis")

	result, err := w.submitter.SubmitAnalysis(ctx, analysisType, file)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.phase = PhaseFailed
		w.errKind = fetch.KindOf(err)
		w.errMsg = failureMessage(err)
		log.WithError(err).Warn("analysis failed")
		return true
	}
	w.phase = PhaseSucceeded
	w.result = &result
	log.WithField("case_id", result.CaseID).Info("analysis succeeded")
	return true
}

// Reset returns a finished workflow to Idle, discarding result and error.
// The staged file stays so the operator can retry without reselecting it.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == PhaseSubmitting {
		return
	}
	w.phase = PhaseIdle
	w.result = nil
	w.errMsg = ""
	w.errKind = 0
}

func (w *Workflow) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := State{
		Phase:        w.phase,
		AnalysisType: w.analysisType,
		Loading:      w.phase == PhaseSubmitting,
		Result:       w.result,
		Error:        w.errMsg,
		ErrorKind:    w.errKind,
	}
	if file, ok := w.picker.Selected(); ok {
		s.HasFile = true
		s.FileName = file.Name
	}
	return s
}

func failureMessage(err error) string {
	switch fetch.KindOf(err) {
	case fetch.KindConnection:
		return "Analysis failed: unable to connect to the analysis service"
	case fetch.KindCanceled:
		return "Analysis failed: request was canceled"
	}
	if msg := fetch.Describe(err); msg != "" {
		return msg
	}
	return "Analysis failed"
}
