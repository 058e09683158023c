package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plant-doctor/pkg/analyzer"
	"github.com/menta2k/plant-doctor/pkg/detection"
	"github.com/menta2k/plant-doctor/pkg/processing"
	"github.com/menta2k/plant-doctor/pkg/remedy"
	"github.com/menta2k/plant-doctor/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeClassifier struct {
	preds []types.Prediction
	err   error
}

func (f *fakeClassifier) Classify(_ context.Context, _ *types.ImageInput) ([]types.Prediction, error) {
	return f.preds, f.err
}

func (f *fakeClassifier) Model() string { return "test/plant-model" }

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return "## 📖 Disease Overview\nRemove infected leaves.", nil
}

func (fakeGenerator) Model() string { return "test-llm" }

func newTestServer(t *testing.T, cls *fakeClassifier, withLLM bool) *Server {
	t.Helper()
	var adv *remedy.Advisor
	if withLLM {
		adv = remedy.NewAdvisor(fakeGenerator{}, nil)
	}
	a := analyzer.New(processing.NewProcessor(), detection.NewDetector(cls, 3), adv, nil)

	srv, err := New(a, Options{Addr: "127.0.0.1:0", MaxUploadBytes: 1 << 20, Version: "test"}, nil)
	require.NoError(t, err)
	return srv
}

func defaultClassifier() *fakeClassifier {
	return &fakeClassifier{preds: []types.Prediction{
		{Label: "Tomato with Early Blight", Score: 0.91},
		{Label: "Tomato with Late Blight", Score: 0.06},
		{Label: "Healthy Tomato Plant", Score: 0.03},
	}}
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: uint8(120 + x), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresAnalyzer(t *testing.T) {
	_, err := New(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "🌱 Plant Disease Detection &amp; Treatment System")
	assert.Contains(t, body, "🔬 Analyze Disease")
	assert.Contains(t, body, `accept="image/*"`)
	assert.Contains(t, body, "getUserMedia")
	assert.Contains(t, body, "<em>Upload an image to see predictions...</em>")
	assert.Contains(t, body, "test/plant-model")
	assert.Contains(t, body, "Always consult with agricultural experts")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAnalyzeFormUpload(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	body, ct := multipartBody(t, "image", "leaf.png", leafPNG(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "<h1>🔍 Disease Detection Results</h1>")
	assert.Contains(t, html, "Tomato with Early Blight: 91.00%")
	assert.Contains(t, html, "<h1>🌿 Treatment &amp; Remedies</h1>")
	assert.Contains(t, html, "Remove infected leaves.")
}

func TestAnalyzeFormWebcam(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(leafPNG(t))
	body, ct := multipartBody(t, "", "", nil, map[string]string{"webcam": dataURL})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tomato with Early Blight")
}

func TestAnalyzeFormNoImage(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	body, ct := multipartBody(t, "", "", nil, map[string]string{"webcam": ""})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "⚠️ Please upload or capture an image first.")
	assert.NotContains(t, rec.Body.String(), `id="remedies"`)
}

func TestAnalyzeFormWithoutLLM(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), false)

	body, ct := multipartBody(t, "image", "leaf.png", leafPNG(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Remedy generator not initialized")
	assert.Contains(t, rec.Body.String(), "Treatment recommendations disabled")
}

func TestDiagnoseMultipart(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	body, ct := multipartBody(t, "image", "leaf.png", leafPNG(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(requestIDHeader, "req-123")

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	var resp diagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-123", resp.RequestID)
	assert.Equal(t, "Tomato with Early Blight", resp.Diagnosis.Label)
	assert.InDelta(t, 91.0, resp.Confidence, 1e-9)
	assert.Len(t, resp.Predictions, 3)
	assert.Equal(t, "test/plant-model", resp.ClassifierModel)
	assert.Equal(t, "test-llm", resp.LLMModel)
	assert.Contains(t, resp.RemediesMarkdown, "## 📋 Detected Disease: **Tomato with Early Blight**")
	assert.Empty(t, resp.RemedyError)
}

func TestDiagnoseRawBody(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader(leafPNG(t)))
	req.Header.Set("Content-Type", "image/png")

	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp diagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Tomato with Early Blight", resp.Diagnosis.Label)
	assert.NotEmpty(t, resp.RemedyError)
	assert.Empty(t, resp.LLMModel)
}

func TestDiagnoseErrors(t *testing.T) {
	tests := []struct {
		name       string
		classifier *fakeClassifier
		body       []byte
		wantStatus int
	}{
		{"empty body", defaultClassifier(), nil, http.StatusBadRequest},
		{"not an image", defaultClassifier(), []byte("plain text"), http.StatusBadRequest},
		{"classifier failure", &fakeClassifier{err: errors.New("upstream 503")}, nil, http.StatusBadGateway},
		{"no predictions", &fakeClassifier{}, nil, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.classifier, true)

			data := tt.body
			if data == nil && tt.wantStatus == http.StatusBadGateway {
				data = leafPNG(t)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader(data))
			req.Header.Set("Content-Type", "image/png")

			rec := do(srv, req)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assert.NotEmpty(t, resp["request_id"])
		})
	}
}

func TestDiagnoseTooLarge(t *testing.T) {
	a := analyzer.New(nil, detection.NewDetector(defaultClassifier(), 3), nil, nil)
	srv, err := New(a, Options{MaxUploadBytes: 16}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader(bytes.Repeat([]byte{0xff}, 1024)))
	req.Header.Set("Content-Type", "image/jpeg")

	rec := do(srv, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestInfoAndHealth(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, "test/plant-model", info["classifier_model"])
	assert.Equal(t, "test-llm", info["llm_model"])
	assert.Equal(t, true, info["remedies_enabled"])

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/diagnose", nil)
	// httptest requests are addressed to example.com; a matching origin is same-origin
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := do(srv, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutdown(t *testing.T) {
	srv := newTestServer(t, defaultClassifier(), true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunInvalidAddr(t *testing.T) {
	a := analyzer.New(nil, nil, nil, nil)
	srv, err := New(a, Options{Addr: "127.0.0.1:99999"}, nil)
	require.NoError(t, err)

	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "server error"))
}
