// Package backend is the console's client for the analysis service HTTP
// contract. Every method returns a *fetch.Error on failure.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

const maxErrorBody = 64 * 1024

// Upload is an image staged for analysis.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitAnalysis uploads one image for the given analysis type.
func (c *Client) SubmitAnalysis(ctx context.Context, analysisType models.AnalysisType, file Upload) (models.AnalysisResult, error) {
	const op = "submit analysis"
	var result models.AnalysisResult

	if !analysisType.Valid() {
		return result, fetch.Validation(op, fmt.Sprintf("unknown analysis type %q", analysisType))
	}
	if len(file.Data) == 0 {
		return result, fetch.Validation(op, "no image staged")
	}

	body, contentType, err := multipartBody(file)
	if err != nil {
		return result, fetch.Validation(op, err.Error())
	}

	endpoint := fmt.Sprintf("%s/analyze_%s", c.baseURL, analysisType)
	if err := c.do(ctx, op, http.MethodPost, endpoint, body, contentType, &result); err != nil {
		return result, err
	}
	if err := result.Validate(); err != nil {
		return result, fetch.Application(op, http.StatusOK, "malformed analysis result: "+err.Error())
	}
	return result, nil
}

func (c *Client) ListCases(ctx context.Context) ([]models.Case, error) {
	const op = "list cases"
	var cases []models.Case
	if err := c.do(ctx, op, http.MethodGet, c.baseURL+"/cases", nil, "", &cases); err != nil {
		return nil, err
	}
	for _, cs := range cases {
		if err := cs.Validate(); err != nil {
			return nil, fetch.Application(op, http.StatusOK, "malformed case list: "+err.Error())
		}
	}
	return cases, nil
}

// GetReport fetches the detailed report for caseID. An unknown case yields a
// KindNotFound error.
func (c *Client) GetReport(ctx context.Context, caseID string) (models.DetailedReport, error) {
	const op = "get report"
	var report models.DetailedReport
	if caseID == "" {
		return report, fetch.Validation(op, "case id is empty")
	}
	endpoint := c.baseURL + "/report/" + url.PathEscape(caseID)
	if err := c.do(ctx, op, http.MethodGet, endpoint, nil, "", &report); err != nil {
		return report, err
	}
	if err := report.Validate(); err != nil {
		return report, fetch.Application(op, http.StatusOK, "malformed report: "+err.Error())
	}
	return report, nil
}

func (c *Client) GetSystemStatus(ctx context.Context) (models.SystemStatus, error) {
	const op = "get system status"
	var status models.SystemStatus
	if err := c.do(ctx, op, http.MethodGet, c.baseURL+"/system/status", nil, "", &status); err != nil {
		return status, err
	}
	switch status.Status {
	case models.HealthHealthy, models.HealthDegraded, models.HealthDown:
	default:
		return status, fetch.Application(op, http.StatusOK, fmt.Sprintf("malformed status: unknown health %q", status.Status))
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fetch.Validation(op, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fetch.Classify(op, err)
	}
	defer resp.Body.Close()

	logger.Log.WithFields(map[string]interface{}{
		"op":         op,
		"url":        endpoint,
		"status":     resp.StatusCode,
		"request_id": reqID,
		"duration":   time.Since(start).Milliseconds(),
	}).Debug("backend call completed")

	if resp.StatusCode >= 400 {
		msg := errorMessage(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			if msg == "" {
				msg = "Not found"
			}
			return fetch.NotFound(op, msg)
		}
		if msg == "" {
			msg = resp.Status
		}
		return fetch.Application(op, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if k := fetch.KindOf(err); k == fetch.KindConnection || k == fetch.KindCanceled {
			return fetch.Classify(op, err)
		}
		return fetch.Application(op, resp.StatusCode, "malformed payload: "+err.Error())
	}
	return nil
}

// errorMessage extracts {"detail": ...} or {"error": ...} from an error body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail  interface{} `json:"detail"`
		Error   string      `json:"error"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	switch {
	case payload.Detail != nil:
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	case payload.Error != "":
		return payload.Error
	default:
		return payload.Message
	}
}

func multipartBody(file Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := file.Name
	if name == "" {
		name = "image"
	}
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
