// Package seed holds the sample dataset shown when the analysis service has
// never been reachable.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// Dataset is the fallback data for the dashboard and system screens.
type Dataset struct {
	Cases  []models.Case
	Status models.SystemStatus
}

// Default returns the built-in dataset with timestamps relative to now.
func Default(now time.Time) Dataset {
	return Dataset{
		Cases: []models.Case{
			{CaseID: "case-001", PatientID: "P12345", AnalysisType: models.AnalysisPneumonia, Diagnosis: "Pneumonia", Probability: 0.92, Timestamp: now, Agent: "LungAgent"},
			{CaseID: "case-002", PatientID: "P12346", AnalysisType: models.AnalysisCardiomegaly, Diagnosis: models.DiagnosisNormal, Probability: 0.08, Timestamp: now.Add(-24 * time.Hour), Agent: "HeartAgent"},
			{CaseID: "case-003", PatientID: "P12347", AnalysisType: models.AnalysisHeart, Diagnosis: "Cardiomegaly", Probability: 0.85, Timestamp: now.Add(-48 * time.Hour), Agent: "HeartAgent"},
		},
		Status: models.SystemStatus{
			Status:           models.HealthHealthy,
			UptimeSeconds:    86400,
			TotalCases:       42,
			AvgInferenceTime: 1.52,
			Profiler: models.ProfilerMetrics{
				TotalLatency:     1.52,
				PlannerLatencyMs: 0.004,
				StepsPerSec:      models.Float(1300),
				GPUUtilPercent:   models.Float(47),
				MemoryMB:         models.Float(2048),
			},
		},
	}
}

type fileCase struct {
	CaseID       string  `yaml:"case_id"`
	PatientID    string  `yaml:"patient_id"`
	AnalysisType string  `yaml:"analysis_type"`
	Diagnosis    string  `yaml:"diagnosis"`
	Probability  float64 `yaml:"probability"`
	// AgeHours places the case relative to load time.
	AgeHours float64 `yaml:"age_hours"`
	Agent    string  `yaml:"agent"`
}

type fileProfiler struct {
	TotalLatency     float64  `yaml:"total_latency"`
	PlannerLatencyMs float64  `yaml:"planner_latency_ms"`
	StepsPerSec      *float64 `yaml:"steps_per_sec"`
	GPUUtilPercent   *float64 `yaml:"gpu_util_percent"`
	MemoryMB         *float64 `yaml:"memory_mb"`
}

type fileStatus struct {
	Status           string       `yaml:"status"`
	UptimeSeconds    int64        `yaml:"uptime_seconds"`
	TotalCases       int64        `yaml:"total_cases"`
	AvgInferenceTime float64      `yaml:"avg_inference_time"`
	Profiler         fileProfiler `yaml:"profiler"`
}

type file struct {
	Cases  []fileCase  `yaml:"cases"`
	Status *fileStatus `yaml:"status"`
}

// Load reads a YAML dataset from path. Sections missing from the file keep
// their built-in values. An empty path returns Default(now).
func Load(path string, now time.Time) (Dataset, error) {
	ds := Default(now)
	if path == "" {
		return ds, nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Dataset{}, fmt.Errorf("read seed file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(content, &f); err != nil {
		return Dataset{}, fmt.Errorf("parse seed file: %w", err)
	}

	if len(f.Cases) > 0 {
		ds.Cases = make([]models.Case, 0, len(f.Cases))
		for _, fc := range f.Cases {
			c := models.Case{
				CaseID:       fc.CaseID,
				PatientID:    fc.PatientID,
				AnalysisType: models.AnalysisType(fc.AnalysisType),
				Diagnosis:    fc.Diagnosis,
				Probability:  fc.Probability,
				Timestamp:    now.Add(-time.Duration(fc.AgeHours * float64(time.Hour))),
				Agent:        fc.Agent,
			}
			if err := c.Validate(); err != nil {
				return Dataset{}, fmt.Errorf("seed file: %w", err)
			}
			ds.Cases = append(ds.Cases, c)
		}
	}

	if f.Status != nil {
		health := models.Health(f.Status.Status)
		switch health {
		case models.HealthHealthy, models.HealthDegraded, models.HealthDown:
		default:
			return Dataset{}, fmt.Errorf("seed file: unknown health %q", f.Status.Status)
		}
		ds.Status = models.SystemStatus{
			Status:           health,
			UptimeSeconds:    f.Status.UptimeSeconds,
			TotalCases:       f.Status.TotalCases,
			AvgInferenceTime: f.Status.AvgInferenceTime,
			Profiler: models.ProfilerMetrics{
				TotalLatency:     f.Status.Profiler.TotalLatency,
				PlannerLatencyMs: f.Status.Profiler.PlannerLatencyMs,
				StepsPerSec:      f.Status.Profiler.StepsPerSec,
				GPUUtilPercent:   f.Status.Profiler.GPUUtilPercent,
				MemoryMB:         f.Status.Profiler.MemoryMB,
			},
		}
	}
	return ds, nil
}
