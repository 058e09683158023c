package gemini_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plant-doctor/pkg/gemini"
)

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), "path %s", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"## 🔍 Symptoms\n- yellow spots"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	gen, err := gemini.NewGenerator(context.Background(), "key", "gemini-test", srv.URL, 0.7, 1024)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", gen.Model())

	out, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "yellow spots")
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	gen, err := gemini.NewGenerator(context.Background(), "key", "", srv.URL, 0.7, 0)
	require.NoError(t, err)
	assert.Equal(t, gemini.DefaultModel, gen.Model())

	_, err = gen.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := gemini.NewGenerator(context.Background(), "", "", "", 0.7, 0)
	assert.Error(t, err)
}
