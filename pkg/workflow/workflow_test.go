package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/backend"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

type stubPicker struct {
	file *backend.Upload
}

func (p *stubPicker) SelectFile(path string) error {
	p.file = &backend.Upload{Name: path, ContentType: "image/png", Data: []byte("png")}
	return nil
}
func (p *stubPicker) ClearFile()             { p.file = nil }
func (p *stubPicker) PreviewDataURL() string { return "" }
func (p *stubPicker) Selected() (backend.Upload, bool) {
	if p.file == nil {
		return backend.Upload{}, false
	}
	return *p.file, true
}

type stubSubmitter struct {
	calls   atomic.Int32
	result  models.AnalysisResult
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubSubmitter) SubmitAnalysis(ctx context.Context, t models.AnalysisType, file backend.Upload) (models.AnalysisResult, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	return s.result, s.err
}

func staged(t *testing.T) *stubPicker {
	t.Helper()
	p := &stubPicker{}
	require.NoError(t, p.SelectFile("xray.png"))
	return p
}

func TestSubmitSucceeds(t *testing.T) {
	sub := &stubSubmitter{result: models.AnalysisResult{Case: models.Case{
		CaseID: "c-9", AnalysisType: models.AnalysisPneumonia, Diagnosis: "Pneumonia", Probability: 0.92, Agent: "LungAgent",
	}}}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisPneumonia))
	assert.True(t, w.Snapshot().CanSubmit())

	assert.True(t, w.Submit(context.Background()))

	s := w.Snapshot()
	assert.Equal(t, PhaseSucceeded, s.Phase)
	require.NotNil(t, s.Result)
	assert.Equal(t, "Pneumonia", s.Result.Diagnosis)
	assert.Equal(t, 92, models.ConfidencePercent(s.Result.Probability))
	assert.Empty(t, s.Error)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSubmitWithoutFileIsNoop(t *testing.T) {
	sub := &stubSubmitter{}
	w := New(sub, &stubPicker{})
	require.NoError(t, w.SelectType(models.AnalysisHeart))

	assert.False(t, w.Submit(context.Background()))
	assert.Equal(t, PhaseIdle, w.Snapshot().Phase)
	assert.Zero(t, sub.calls.Load())
}

func TestSubmitWithoutTypeIsNoop(t *testing.T) {
	sub := &stubSubmitter{}
	w := New(sub, staged(t))
	assert.False(t, w.Snapshot().CanSubmit())
	assert.False(t, w.Submit(context.Background()))
	assert.Zero(t, sub.calls.Load())
}

func TestDoubleSubmitIsRejected(t *testing.T) {
	sub := &stubSubmitter{
		result:  models.AnalysisResult{Case: models.Case{CaseID: "c-1", Diagnosis: "Normal", Probability: 0.1}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisCardiomegaly))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Submit(context.Background())
	}()
	<-sub.started

	s := w.Snapshot()
	assert.Equal(t, PhaseSubmitting, s.Phase)
	assert.True(t, s.Loading)
	assert.False(t, s.CanSubmit())
	assert.False(t, w.Submit(context.Background()))
	assert.Error(t, w.SelectType(models.AnalysisHeart))

	close(sub.release)
	wg.Wait()
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, PhaseSucceeded, w.Snapshot().Phase)

	// terminal phases reject until reset
	assert.False(t, w.Submit(context.Background()))
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestConnectionFailureMessage(t *testing.T) {
	sub := &stubSubmitter{err: fetch.Connection("submit analysis", errors.New("connection refused"))}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisPneumonia))

	assert.True(t, w.Submit(context.Background()))
	s := w.Snapshot()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, fetch.KindConnection, s.ErrorKind)
	assert.Equal(t, "Analysis failed: unable to connect to the analysis service", s.Error)
	assert.Nil(t, s.Result)
}

func TestRemoteFailureMessage(t *testing.T) {
	sub := &stubSubmitter{err: fetch.Application("submit analysis", 500, "Analysis failed: unreadable image")}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisPneumonia))

	w.Submit(context.Background())
	assert.Equal(t, "Analysis failed: unreadable image", w.Snapshot().Error)
}

func TestResetKeepsFile(t *testing.T) {
	sub := &stubSubmitter{err: fetch.Application("submit analysis", 500, "boom")}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisPneumonia))
	w.Submit(context.Background())
	require.Equal(t, PhaseFailed, w.Snapshot().Phase)

	w.Reset()
	s := w.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.Error)
	assert.True(t, s.HasFile)
	assert.Equal(t, "xray.png", s.FileName)

	sub.err = nil
	sub.result = models.AnalysisResult{Case: models.Case{CaseID: "c-2", Diagnosis: "Normal", Probability: 0.2}}
	assert.True(t, w.Submit(context.Background()))
	assert.Equal(t, PhaseSucceeded, w.Snapshot().Phase)
	assert.Equal(t, int32(2), sub.calls.Load())
}

func TestSelectTypeRejectsUnknown(t *testing.T) {
	w := New(&stubSubmitter{}, &stubPicker{})
	assert.Error(t, w.SelectType("lungs"))
}

func TestSubmitClearsPreviousFailure(t *testing.T) {
	sub := &stubSubmitter{err: fetch.Connection("submit analysis", errors.New("refused"))}
	w := New(sub, staged(t))
	require.NoError(t, w.SelectType(models.AnalysisPneumonia))
	w.Submit(context.Background())
	require.Equal(t, fetch.KindConnection, w.Snapshot().ErrorKind)

	// return to idle without Reset so Submit alone must drop the old failure
	w.mu.Lock()
	w.phase = PhaseIdle
	w.mu.Unlock()

	sub.err = nil
	sub.started = make(chan struct{}, 1)
	sub.release = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Submit(context.Background())
	}()
	<-sub.started

	s := w.Snapshot()
	assert.Equal(t, PhaseSubmitting, s.Phase)
	assert.Empty(t, s.Error)
	assert.Zero(t, s.ErrorKind)
	assert.Nil(t, s.Result)

	close(sub.release)
	<-done
	assert.Equal(t, PhaseSucceeded, w.Snapshot().Phase)
}
