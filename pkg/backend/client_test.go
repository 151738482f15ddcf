package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestSubmitAnalysisSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze_pneumonia", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "chest.png", header.Filename)
		assert.Equal(t, []byte("png-bytes"), data)

		writeJSON(t, w, http.StatusOK, models.AnalysisResult{
			Case: models.Case{CaseID: "c-1", AnalysisType: models.AnalysisPneumonia, Diagnosis: "Pneumonia", Probability: 0.92, Agent: "LungAgent"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	res, err := client.SubmitAnalysis(context.Background(), models.AnalysisPneumonia, Upload{Name: "chest.png", ContentType: "image/png", Data: []byte("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "c-1", res.CaseID)
	assert.Equal(t, 92, models.ConfidencePercent(res.Probability))
}

func TestSubmitAnalysisSurfacesRemoteDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]string{"detail": "Analysis failed: unreadable image"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.SubmitAnalysis(context.Background(), models.AnalysisHeart, Upload{Data: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, fetch.KindApplication, fetch.KindOf(err))
	assert.Equal(t, "Analysis failed: unreadable image", fetch.Describe(err))
}

func TestSubmitAnalysisRejectsMissingFileLocally(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil)
	_, err := client.SubmitAnalysis(context.Background(), models.AnalysisPneumonia, Upload{})
	assert.Equal(t, fetch.KindValidation, fetch.KindOf(err))
}

func TestListCasesValidatesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]interface{}{
			{"case_id": "c-1", "diagnosis": "Normal", "probability": 1.7},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).ListCases(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.KindApplication, fetch.KindOf(err))
}

func TestListCasesMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).ListCases(context.Background())
	assert.Equal(t, fetch.KindApplication, fetch.KindOf(err))
}

func TestGetReportNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/report/unknown-id", r.URL.Path)
		writeJSON(t, w, http.StatusNotFound, map[string]string{"detail": "Case not found"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).GetReport(context.Background(), "unknown-id")
	require.Error(t, err)
	assert.True(t, fetch.IsNotFound(err))
	assert.Equal(t, "Case not found", fetch.Describe(err))
}

func TestGetSystemStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/system/status", r.URL.Path)
		writeJSON(t, w, http.StatusOK, models.SystemStatus{Status: models.HealthHealthy, UptimeSeconds: 60, TotalCases: 3})
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL, srv.Client()).GetSystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.TotalCases)
}

func TestGetSystemStatusRejectsUnknownHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"status": "operational"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).GetSystemStatus(context.Background())
	assert.Equal(t, fetch.KindApplication, fetch.KindOf(err))
}

func TestConnectionFailureIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, &http.Client{Timeout: time.Second}).ListCases(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.KindConnection, fetch.KindOf(err))
}

func TestSlowBackendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, &http.Client{Timeout: 50 * time.Millisecond}).GetSystemStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.KindConnection, fetch.KindOf(err))
}
