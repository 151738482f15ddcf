package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/analysis"
	"github.com/synaptica-ai/radiology-console/pkg/artifacts"
	"github.com/synaptica-ai/radiology-console/pkg/casestore"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/routes"
	"github.com/synaptica-ai/radiology-console/pkg/screens"
)

type fixedScorer float64

func (f fixedScorer) Predict(string, map[string]float64) (float64, error) {
	return float64(f), nil
}

func (f fixedScorer) Version(string) string { return "test" }

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OIDC_ISSUER", "OIDC_CLIENT_ID", "SERVICE_API_TOKEN", "SEED_FILE", "REDACTION_RULES_FILE", "BACKEND_URL"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "panic")
}

func startService(t *testing.T) string {
	t.Helper()
	svc := analysis.NewService(casestore.NewMemoryRepository(), artifacts.NewMemoryStore(), fixedScorer(0.92))
	router := mux.NewRouter()
	routes.RegisterAnalysisRoutes(router, &routes.AnalysisAPI{Service: svc})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFilm(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 8)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "chest.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestDashboardFallsBackToSampleData(t *testing.T) {
	cleanEnv(t)
	out, err := run(t, "dashboard", "--backend-url", "http://127.0.0.1:1", "--timeout", "200ms")
	require.NoError(t, err)
	assert.Contains(t, out, screens.NoticeSample)
	assert.Contains(t, out, "case-001")
}

func TestAnalyzeThenDashboardAndReport(t *testing.T) {
	cleanEnv(t)
	url := startService(t)

	out, err := run(t, "analyze", "--backend-url", url, "--file", writeFilm(t), "--open-report")
	require.NoError(t, err)
	assert.Contains(t, out, "Pneumonia")
	assert.Contains(t, out, "92%")
	assert.Contains(t, out, "LungAgent")

	out, err = run(t, "dashboard", "--backend-url", url, "-o", "markdown")
	require.NoError(t, err)
	assert.NotContains(t, out, screens.NoticeSample)
	assert.Contains(t, out, "| ")
	assert.Contains(t, out, "Pneumonia")
}

func TestReportNotFound(t *testing.T) {
	cleanEnv(t)
	url := startService(t)

	out, err := run(t, "report", "missing-case", "--backend-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, screens.ReturnHint)
}

func TestStatusOnce(t *testing.T) {
	cleanEnv(t)
	url := startService(t)

	out, err := run(t, "status", "--backend-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "HEALTHY")
}

func TestStatusWatchStopsAfterCount(t *testing.T) {
	cleanEnv(t)
	url := startService(t)

	out, err := run(t, "status", "--backend-url", url, "--watch", "--interval", "20ms", "--count", "2")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bytes.Count([]byte(out), []byte("System status:")), 2)
}

func TestAnalyzeRejectsUnknownType(t *testing.T) {
	cleanEnv(t)
	_, err := run(t, "analyze", "--backend-url", "http://127.0.0.1:1", "--file", writeFilm(t), "--type", "lungs")
	assert.Error(t, err)
}

func TestAnalyzeConnectionFailure(t *testing.T) {
	cleanEnv(t)
	out, err := run(t, "analyze", "--backend-url", "http://127.0.0.1:1", "--timeout", "200ms", "--file", writeFilm(t))
	require.Error(t, err)
	assert.Contains(t, out, "unable to connect")
}

func TestUnknownOutputFormat(t *testing.T) {
	cleanEnv(t)
	_, err := run(t, "dashboard", "-o", "xml")
	assert.Error(t, err)
}

func TestEventsRequiresBrokers(t *testing.T) {
	cleanEnv(t)
	t.Setenv("KAFKA_BROKERS", "")
	_, err := run(t, "events")
	assert.Error(t, err)
}
