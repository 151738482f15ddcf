package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/radiology-console/pkg/analysis"
	"github.com/synaptica-ai/radiology-console/pkg/casestore"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// AnalysisService is what the HTTP layer needs from pkg/analysis.
type AnalysisService interface {
	Analyze(ctx context.Context, t models.AnalysisType, upload analysis.Upload) (models.AnalysisResult, error)
	Cases(ctx context.Context) ([]models.Case, error)
	Report(ctx context.Context, caseID string) (models.DetailedReport, error)
	Status(ctx context.Context) models.SystemStatus
}

type AnalysisAPI struct {
	Service        AnalysisService
	MaxUploadBytes int64
	Started        time.Time
}

func RegisterAnalysisRoutes(router *mux.Router, api *AnalysisAPI) {
	if api == nil || api.Service == nil {
		panic("analysis routes require a service")
	}
	if api.MaxUploadBytes <= 0 {
		api.MaxUploadBytes = 10 * 1024 * 1024
	}
	if api.Started.IsZero() {
		api.Started = time.Now()
	}

	router.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/system/status", api.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/cases", api.handleCases).Methods(http.MethodGet)
	router.HandleFunc("/report/{case_id}", api.handleReport).Methods(http.MethodGet)
	for _, t := range models.AnalysisTypes {
		router.HandleFunc("/analyze_"+string(t), api.handleAnalyze(t)).Methods(http.MethodPost)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (a *AnalysisAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         models.HealthHealthy,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(a.Started).Seconds()),
	})
}

func (a *AnalysisAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Service.Status(r.Context()))
}

func (a *AnalysisAPI) handleCases(w http.ResponseWriter, r *http.Request) {
	cases, err := a.Service.Cases(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list cases")
		writeDetail(w, http.StatusInternalServerError, "Failed to list cases")
		return
	}
	if cases == nil {
		cases = []models.Case{}
	}
	writeJSON(w, http.StatusOK, cases)
}

func (a *AnalysisAPI) handleReport(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	report, err := a.Service.Report(r.Context(), caseID)
	if errors.Is(err, casestore.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Case not found")
		return
	}
	if err != nil {
		logger.Log.WithError(err).WithField("case_id", caseID).Error("Failed to load report")
		writeDetail(w, http.StatusInternalServerError, "Failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *AnalysisAPI) handleAnalyze(t models.AnalysisType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, status, detail := a.readUpload(w, r)
		if status != http.StatusOK {
			writeDetail(w, status, detail)
			return
		}

		result, err := a.Service.Analyze(r.Context(), t, upload)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Analysis failed: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// readUpload pulls the multipart "file" field. On failure it returns the
// status and detail to answer with.
func (a *AnalysisAPI) readUpload(w http.ResponseWriter, r *http.Request) (analysis.Upload, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return analysis.Upload{}, http.StatusRequestEntityTooLarge, "Upload exceeds size limit"
		}
		return analysis.Upload{}, http.StatusBadRequest, "Invalid multipart body"
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return analysis.Upload{}, http.StatusBadRequest, "Missing file field"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.MaxUploadBytes+1))
	if err != nil {
		return analysis.Upload{}, http.StatusBadRequest, "Failed to read upload"
	}
	if int64(len(data)) > a.MaxUploadBytes {
		return analysis.Upload{}, http.StatusRequestEntityTooLarge, "Upload exceeds size limit"
	}
	return analysis.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, http.StatusOK, ""
}
