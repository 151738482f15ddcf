package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// CaseRecord is the persistence model for one analysed case.
type CaseRecord struct {
	CaseID        string         `gorm:"primaryKey;column:case_id"`
	PatientID     string         `gorm:"column:patient_id"`
	AnalysisType  string         `gorm:"column:analysis_type;index"`
	Diagnosis     string         `gorm:"column:diagnosis"`
	Probability   float64        `gorm:"column:probability"`
	Agent         string         `gorm:"column:agent"`
	InferenceTime float64        `gorm:"column:inference_time"`
	SystemLog     string         `gorm:"column:system_log"`
	Artifacts     datatypes.JSON `gorm:"column:artifacts"`
	Trace         datatypes.JSON `gorm:"column:orchestrator_trace"`
	Profiler      datatypes.JSON `gorm:"column:profiler_metrics"`
	CreatedAt     time.Time      `gorm:"column:created_at;index"`
}

func (CaseRecord) TableName() string {
	return "analysis_cases"
}

// GormRepository stores cases in PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&CaseRecord{})
}

func (r *GormRepository) Save(ctx context.Context, report models.DetailedReport) error {
	rec, err := toRecord(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&rec).Error
}

func (r *GormRepository) List(ctx context.Context) ([]models.Case, error) {
	var recs []CaseRecord
	err := r.db.WithContext(ctx).
		Select("case_id", "patient_id", "analysis_type", "diagnosis", "probability", "agent", "created_at").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Case, len(recs))
	for i, rec := range recs {
		out[i] = rec.summary()
	}
	return out, nil
}

func (r *GormRepository) Get(ctx context.Context, caseID string) (models.DetailedReport, error) {
	var rec CaseRecord
	err := r.db.WithContext(ctx).Where("case_id = ?", caseID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DetailedReport{}, ErrNotFound
	}
	if err != nil {
		return models.DetailedReport{}, err
	}
	return rec.report()
}

func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&CaseRecord{}).Count(&n).Error
	return n, err
}

func toRecord(report models.DetailedReport) (CaseRecord, error) {
	artifacts, err := json.Marshal(report.Artifacts)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("encode artifacts: %w", err)
	}
	trace, err := json.Marshal(report.Trace)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("encode trace: %w", err)
	}
	profiler, err := json.Marshal(report.Profiler)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("encode profiler: %w", err)
	}
	return CaseRecord{
		CaseID:        report.CaseID,
		PatientID:     report.PatientID,
		AnalysisType:  string(report.AnalysisType),
		Diagnosis:     report.Diagnosis,
		Probability:   report.Probability,
		Agent:         report.Agent,
		InferenceTime: report.InferenceTime,
		SystemLog:     report.SystemLog,
		Artifacts:     datatypes.JSON(artifacts),
		Trace:         datatypes.JSON(trace),
		Profiler:      datatypes.JSON(profiler),
		CreatedAt:     report.Timestamp.UTC(),
	}, nil
}

func (rec CaseRecord) summary() models.Case {
	return models.Case{
		CaseID:       rec.CaseID,
		PatientID:    rec.PatientID,
		AnalysisType: models.AnalysisType(rec.AnalysisType),
		Diagnosis:    rec.Diagnosis,
		Probability:  rec.Probability,
		Timestamp:    rec.CreatedAt,
		Agent:        rec.Agent,
	}
}

func (rec CaseRecord) report() (models.DetailedReport, error) {
	out := models.DetailedReport{AnalysisResult: models.AnalysisResult{
		Case:          rec.summary(),
		SystemLog:     rec.SystemLog,
		InferenceTime: rec.InferenceTime,
	}}
	if len(rec.Artifacts) > 0 {
		if err := json.Unmarshal(rec.Artifacts, &out.Artifacts); err != nil {
			return out, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	if len(rec.Trace) > 0 {
		if err := json.Unmarshal(rec.Trace, &out.Trace); err != nil {
			return out, fmt.Errorf("decode trace: %w", err)
		}
	}
	if len(rec.Profiler) > 0 {
		if err := json.Unmarshal(rec.Profiler, &out.Profiler); err != nil {
			return out, fmt.Errorf("decode profiler: %w", err)
		}
	}
	return out, nil
}
