// Package analysis runs uploaded films through the scoring pipeline, stores
// the resulting case and keeps the service-wide status counters.
package analysis

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synaptica-ai/radiology-console/pkg/artifacts"
	"github.com/synaptica-ai/radiology-console/pkg/casestore"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/observability/metrics"
	"github.com/synaptica-ai/radiology-console/pkg/serving/predictor"
)

// Threshold is the probability at or above which a finding is positive.
const Threshold = 0.5

type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, event models.AnalysisCompletedEvent) error
}

type Scorer interface {
	Predict(model string, features map[string]float64) (float64, error)
	Version(model string) string
}

type pipeline struct {
	storedAs models.AnalysisType
	model    string
	agent    string
	label    string
	region   string
}

var pipelines = map[models.AnalysisType]pipeline{
	models.AnalysisPneumonia:    {storedAs: models.AnalysisPneumonia, model: predictor.ModelPneumonia, agent: "LungAgent", label: "Pneumonia", region: "lung regions"},
	models.AnalysisCardiomegaly: {storedAs: models.AnalysisCardiomegaly, model: predictor.ModelCardiomegaly, agent: "HeartAgent", label: "Cardiomegaly", region: "cardiac silhouette"},
	// heart is an alias of cardiomegaly
	models.AnalysisHeart: {storedAs: models.AnalysisCardiomegaly, model: predictor.ModelCardiomegaly, agent: "HeartAgent", label: "Cardiomegaly", region: "cardiac silhouette"},
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo      casestore.Repository
	artifacts artifacts.Store
	scorer    Scorer
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	started   time.Time

	mu           sync.Mutex
	succeeded    int64
	failed       int64
	avgInference float64
	lastProfile  models.ProfilerMetrics
}

func NewService(repo casestore.Repository, store artifacts.Store, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		artifacts: store,
		scorer:    scorer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s
}

// Analyze scores one film and stores the case.
func (s *Service) Analyze(ctx context.Context, requested models.AnalysisType, upload Upload) (models.AnalysisResult, error) {
	start := time.Now()
	result, err := s.analyze(ctx, requested, upload, start)
	if err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.observe(requested, "failure", 0)
		logger.Log.WithError(err).WithField("analysis_type", requested).Warn("analysis failed")
		return models.AnalysisResult{}, err
	}
	return result, nil
}

func (s *Service) analyze(ctx context.Context, requested models.AnalysisType, upload Upload, start time.Time) (models.AnalysisResult, error) {
	pipe, ok := pipelines[requested]
	if !ok {
		return models.AnalysisResult{}, fmt.Errorf("unknown analysis type %q", requested)
	}
	planned := time.Now()

	grid, format, err := predictor.Decode(upload.Data)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	features := grid.Features()
	prob, err := s.scorer.Predict(pipe.model, features)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("inference: %w", err)
	}

	diagnosis := models.DiagnosisNormal
	if prob >= Threshold {
		diagnosis = pipe.label
	}

	caseID := uuid.New().String()
	arts := &models.Artifacts{}
	if heatmap, err := heatmapDataURL(grid); err == nil {
		arts.HeatmapPNG = heatmap
	} else {
		logger.Log.WithError(err).WithField("case_id", caseID).Warn("heatmap generation failed")
	}
	key := "uploads/" + caseID + imageExt(upload.Name, format)
	if err := s.artifacts.Put(ctx, key, upload.ContentType, upload.Data); err != nil {
		logger.Log.WithError(err).WithField("case_id", caseID).Warn("failed to store uploaded image")
	} else {
		arts.ImageKey = key
	}

	elapsed := time.Since(start).Seconds()
	trace := buildTrace(pipe, diagnosis, prob)
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	profile := models.ProfilerMetrics{
		TotalLatency:     elapsed,
		PlannerLatencyMs: float64(planned.Sub(start).Microseconds()) / 1000,
		MemoryMB:         models.Float(math.Round(float64(mem.Alloc) / (1 << 20))),
	}
	if elapsed > 0 {
		profile.StepsPerSec = models.Float(math.Round(float64(len(trace)) / elapsed))
	}

	report := models.DetailedReport{
		AnalysisResult: models.AnalysisResult{
			Case: models.Case{
				CaseID:       caseID,
				AnalysisType: pipe.storedAs,
				Diagnosis:    diagnosis,
				Probability:  prob,
				Timestamp:    s.now().UTC(),
				Agent:        pipe.agent,
			},
			Artifacts:     arts,
			SystemLog:     systemLog(pipe, s.scorer.Version(pipe.model), format, upload, features),
			InferenceTime: elapsed,
			Trace:         trace,
		},
		Profiler: profile,
	}
	if err := s.repo.Save(ctx, report); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("store case: %w", err)
	}

	s.mu.Lock()
	s.succeeded++
	s.avgInference += (elapsed - s.avgInference) / float64(s.succeeded)
	s.lastProfile = profile
	s.mu.Unlock()
	s.observe(requested, "success", elapsed)

	logger.Log.WithFields(map[string]interface{}{
		"case_id":       caseID,
		"analysis_type": pipe.storedAs,
		"diagnosis":     diagnosis,
		"probability":   prob,
		"latency_ms":    elapsed * 1000,
	}).Info("Analysis completed")

	s.publish(ctx, report.Case)
	return report.AnalysisResult, nil
}

func (s *Service) publish(ctx context.Context, c models.Case) {
	if s.publisher == nil {
		return
	}
	event := models.AnalysisCompletedEvent{
		ID:           uuid.New().String(),
		CaseID:       c.CaseID,
		AnalysisType: c.AnalysisType,
		Diagnosis:    c.Diagnosis,
		Probability:  c.Probability,
		Timestamp:    c.Timestamp,
	}
	if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		logger.Log.WithError(err).WithField("case_id", c.CaseID).Warn("Failed to publish analysis event")
		if s.metrics != nil {
			s.metrics.EventsFailed.Inc()
		}
	}
}

func (s *Service) observe(t models.AnalysisType, outcome string, seconds float64) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalysesTotal.WithLabelValues(string(t), outcome).Inc()
	if outcome == "success" {
		s.metrics.InferenceSeconds.WithLabelValues(string(t)).Observe(seconds)
	}
}

func (s *Service) Cases(ctx context.Context) ([]models.Case, error) {
	return s.repo.List(ctx)
}

// Report returns casestore.ErrNotFound for an unknown id.
func (s *Service) Report(ctx context.Context, caseID string) (models.DetailedReport, error) {
	return s.repo.Get(ctx, caseID)
}

// Status snapshots the service counters. A repository that cannot be
// counted degrades the reported health.
func (s *Service) Status(ctx context.Context) models.SystemStatus {
	health := models.HealthHealthy
	total, err := s.repo.Count(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to count cases")
		health = models.HealthDegraded
	}
	if s.metrics != nil && err == nil {
		s.metrics.CasesStored.Set(float64(total))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SystemStatus{
		Status:           health,
		UptimeSeconds:    int64(s.now().Sub(s.started).Seconds()),
		TotalCases:       total,
		AvgInferenceTime: s.avgInference,
		Profiler:         s.lastProfile,
	}
}

func buildTrace(pipe pipeline, diagnosis string, prob float64) []models.TraceStep {
	task := strings.ToLower(pipe.label)
	pct := models.ConfidencePercent(prob)
	output := fmt.Sprintf("%s detected with %d%% confidence", pipe.label, pct)
	if diagnosis == models.DiagnosisNormal {
		output = fmt.Sprintf("No %s detected (%d%% probability)", task, pct)
	}
	adapt := "Retaining assignment based on high confidence"
	margin := math.Abs(prob - Threshold)
	if margin < 0.2 {
		adapt = "Low-margin result; flagging for radiologist review"
	}
	return []models.TraceStep{
		{Step: models.StepPlan, Action: "Decompose chest X-ray analysis task", Confidence: models.Float(0.95)},
		{Step: models.StepAssign, Agent: pipe.agent, Action: fmt.Sprintf("Assigned %s detection to %s", task, pipe.agent), Confidence: models.Float(0.98)},
		{Step: models.StepExecute, Agent: pipe.agent, Action: fmt.Sprintf("Analyzing %s for %s indicators", pipe.region, task), Output: output, Confidence: models.Float(prob)},
		{Step: models.StepAdapt, Action: adapt, Confidence: models.Float(math.Min(1, 0.5+margin))},
	}
}

func systemLog(pipe pipeline, version, format string, upload Upload, features map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "input=%s format=%s bytes=%d\n", upload.Name, format, len(upload.Data))
	fmt.Fprintf(&b, "preprocess: grayscale resample %dx%d\n", 64, 64)
	fmt.Fprintf(&b, "model=%s version=%s threshold=%.2f\n", pipe.model, version, Threshold)
	for _, name := range predictor.FeatureNames {
		fmt.Fprintf(&b, "feature %s=%.4f\n", name, features[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func imageExt(name, format string) string {
	if ext := filepath.Ext(name); ext != "" {
		return strings.ToLower(ext)
	}
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}
