package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DiagnosisNormal is the only diagnosis label that denotes a negative finding.
const DiagnosisNormal = "Normal"

type AnalysisType string

const (
	AnalysisPneumonia    AnalysisType = "pneumonia"
	AnalysisCardiomegaly AnalysisType = "cardiomegaly"
	AnalysisHeart        AnalysisType = "heart"
)

// AnalysisTypes lists the selectable analysis types in display order.
var AnalysisTypes = []AnalysisType{AnalysisPneumonia, AnalysisCardiomegaly, AnalysisHeart}

func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisPneumonia, AnalysisCardiomegaly, AnalysisHeart:
		return true
	}
	return false
}

func ParseAnalysisType(s string) (AnalysisType, error) {
	t := AnalysisType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown analysis type %q (want pneumonia, cardiomegaly or heart)", s)
	}
	return t, nil
}

type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthDown     Health = "down"
)

type StepName string

const (
	StepPlan    StepName = "plan"
	StepAssign  StepName = "assign"
	StepExecute StepName = "execute"
	StepAdapt   StepName = "adapt"
)

// Case is one completed analysis as listed on the dashboard.
type Case struct {
	CaseID       string       `json:"case_id"`
	PatientID    string       `json:"patient_id,omitempty"`
	AnalysisType AnalysisType `json:"analysis_type"`
	Diagnosis    string       `json:"diagnosis"`
	Probability  float64      `json:"probability"`
	Timestamp    time.Time    `json:"timestamp"`
	Agent        string       `json:"agent"`
}

// UnmarshalJSON reads the case time from "timestamp", falling back to the
// "date" key older backends send. Zone-less ISO times are taken as UTC.
func (c *Case) UnmarshalJSON(data []byte) error {
	type plain Case
	var wire struct {
		plain
		Timestamp string `json:"timestamp"`
		Date      string `json:"date"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = Case(wire.plain)

	raw := wire.Timestamp
	if raw == "" {
		raw = wire.Date
	}
	if raw == "" {
		return nil
	}
	ts, err := parseCaseTime(raw)
	if err != nil {
		return err
	}
	c.Timestamp = ts
	return nil
}

var caseTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseCaseTime(s string) (time.Time, error) {
	for _, layout := range caseTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized case time %q", s)
}

func (c Case) IsPositive() bool {
	return c.Diagnosis != DiagnosisNormal
}

func (c Case) Validate() error {
	if c.CaseID == "" {
		return fmt.Errorf("case id is empty")
	}
	if c.Diagnosis == "" {
		return fmt.Errorf("case %s: diagnosis is empty", c.CaseID)
	}
	if !inUnitRange(c.Probability) {
		return fmt.Errorf("case %s: probability %v outside [0,1]", c.CaseID, c.Probability)
	}
	return nil
}

type TraceStep struct {
	Step       StepName `json:"step"`
	Agent      string   `json:"agent,omitempty"`
	Action     string   `json:"action"`
	Output     string   `json:"output,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (s TraceStep) Validate() error {
	if s.Confidence != nil && !inUnitRange(*s.Confidence) {
		return fmt.Errorf("trace step %s: confidence %v outside [0,1]", s.Step, *s.Confidence)
	}
	return nil
}

type Artifacts struct {
	HeatmapPNG string `json:"heatmap_png,omitempty"`
	ImageKey   string `json:"image_key,omitempty"`
}

// AnalysisResult is returned immediately after a submission.
type AnalysisResult struct {
	Case
	Artifacts     *Artifacts  `json:"artifacts,omitempty"`
	SystemLog     string      `json:"system_log,omitempty"`
	InferenceTime float64     `json:"inference_time,omitempty"`
	Trace         []TraceStep `json:"orchestrator_trace,omitempty"`
}

// UnmarshalJSON decodes the embedded case through Case.UnmarshalJSON, which
// would otherwise be promoted and swallow the remaining fields.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Case); err != nil {
		return err
	}
	var rest struct {
		Artifacts     *Artifacts  `json:"artifacts"`
		SystemLog     string      `json:"system_log"`
		InferenceTime float64     `json:"inference_time"`
		Trace         []TraceStep `json:"orchestrator_trace"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	r.Artifacts = rest.Artifacts
	r.SystemLog = rest.SystemLog
	r.InferenceTime = rest.InferenceTime
	r.Trace = rest.Trace
	return nil
}

func (r AnalysisResult) Validate() error {
	if err := r.Case.Validate(); err != nil {
		return err
	}
	for _, step := range r.Trace {
		if err := step.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type ProfilerMetrics struct {
	TotalLatency     float64  `json:"total_latency"`
	PlannerLatencyMs float64  `json:"planner_latency_ms"`
	StepsPerSec      *float64 `json:"steps_per_sec,omitempty"`
	GPUUtilPercent   *float64 `json:"gpu_util_percent,omitempty"`
	MemoryMB         *float64 `json:"memory_mb,omitempty"`
}

// DetailedReport is the per-case report fetched lazily by case id.
type DetailedReport struct {
	AnalysisResult
	Profiler ProfilerMetrics `json:"profiler_metrics"`
}

func (r *DetailedReport) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.AnalysisResult); err != nil {
		return err
	}
	var rest struct {
		Profiler ProfilerMetrics `json:"profiler_metrics"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	r.Profiler = rest.Profiler
	return nil
}

// SystemStatus is a point-in-time snapshot; a newer one replaces it wholesale.
type SystemStatus struct {
	Status           Health          `json:"status"`
	UptimeSeconds    int64           `json:"uptime_seconds"`
	TotalCases       int64           `json:"total_cases"`
	AvgInferenceTime float64         `json:"avg_inference_time"`
	Profiler         ProfilerMetrics `json:"profiler"`
}

// AnalysisCompletedEvent is published once a case has been stored.
type AnalysisCompletedEvent struct {
	ID           string       `json:"id"`
	CaseID       string       `json:"case_id"`
	AnalysisType AnalysisType `json:"analysis_type"`
	Diagnosis    string       `json:"diagnosis"`
	Probability  float64      `json:"probability"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ConfidencePercent converts a probability to a whole display percentage.
func ConfidencePercent(p float64) int {
	return int(math.Round(p * 100))
}

// Float returns a pointer to v, for the optional metric fields.
func Float(v float64) *float64 {
	return &v
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
