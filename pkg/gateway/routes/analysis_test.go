package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/analysis"
	"github.com/synaptica-ai/radiology-console/pkg/artifacts"
	"github.com/synaptica-ai/radiology-console/pkg/backend"
	"github.com/synaptica-ai/radiology-console/pkg/casestore"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

type fixedScorer float64

func (f fixedScorer) Predict(model string, features map[string]float64) (float64, error) {
	return float64(f), nil
}

func (f fixedScorer) Version(model string) string { return "test" }

func film(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(y * 8)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newServer(t *testing.T, prob float64, maxUpload int64) *httptest.Server {
	t.Helper()
	svc := analysis.NewService(casestore.NewMemoryRepository(), artifacts.NewMemoryStore(), fixedScorer(prob))
	router := mux.NewRouter()
	RegisterAnalysisRoutes(router, &AnalysisAPI{Service: svc, MaxUploadBytes: maxUpload})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeThenListAndReport(t *testing.T) {
	srv := newServer(t, 0.92, 0)
	client := backend.NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	res, err := client.SubmitAnalysis(ctx, models.AnalysisPneumonia, backend.Upload{Name: "chest.png", ContentType: "image/png", Data: film(t)})
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", res.Diagnosis)
	assert.Equal(t, "LungAgent", res.Agent)

	cases, err := client.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, res.CaseID, cases[0].CaseID)

	report, err := client.GetReport(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, res.CaseID, report.CaseID)
	assert.NotEmpty(t, report.Trace)

	status, err := client.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.HealthHealthy, status.Status)
	assert.Equal(t, int64(1), status.TotalCases)
}

func TestHeartIsStoredAsCardiomegaly(t *testing.T) {
	srv := newServer(t, 0.1, 0)
	client := backend.NewClient(srv.URL, srv.Client())

	res, err := client.SubmitAnalysis(context.Background(), models.AnalysisHeart, backend.Upload{Name: "chest.png", Data: film(t)})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCardiomegaly, res.AnalysisType)
	assert.Equal(t, models.DiagnosisNormal, res.Diagnosis)
}

func TestUnknownReportIs404(t *testing.T) {
	srv := newServer(t, 0.5, 0)

	resp, err := srv.Client().Get(srv.URL + "/report/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Case not found", body["detail"])

	_, err = backend.NewClient(srv.URL, srv.Client()).GetReport(context.Background(), "nope")
	assert.True(t, fetch.IsNotFound(err))
}

func TestEmptyCaseListIsArray(t *testing.T) {
	srv := newServer(t, 0.5, 0)
	resp, err := srv.Client().Get(srv.URL + "/cases")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestUndecodableImageIs500WithDetail(t *testing.T) {
	srv := newServer(t, 0.5, 0)
	client := backend.NewClient(srv.URL, srv.Client())

	_, err := client.SubmitAnalysis(context.Background(), models.AnalysisPneumonia, backend.Upload{Name: "x.png", Data: []byte("not an image")})
	require.Error(t, err)
	assert.Equal(t, fetch.KindApplication, fetch.KindOf(err))
	assert.Contains(t, fetch.Describe(err), "Analysis failed:")

	status, err := client.GetSystemStatus(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.TotalCases)
}

func multipartRequest(t *testing.T, url, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "chest.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadValidation(t *testing.T) {
	srv := newServer(t, 0.5, 1024)

	resp, err := srv.Client().Do(multipartRequest(t, srv.URL+"/analyze_pneumonia", "image", film(t)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = srv.Client().Do(multipartRequest(t, srv.URL+"/analyze_pneumonia", "file", make([]byte, 4096)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/analyze_pneumonia")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, 0.5, 0)
	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
