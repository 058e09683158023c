package huggingface_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plant-doctor/pkg/huggingface"
	"github.com/menta2k/plant-doctor/pkg/types"
)

func testImage() *types.ImageInput {
	return &types.ImageInput{
		Data:     []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10},
		MIMEType: "image/jpeg",
		Width:    224,
		Height:   224,
	}
}

func TestClassify_Success(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/org/leaf-model", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.Header.Get("x-wait-for-model"))
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label":"Tomato with Early Blight","score":0.91},{"label":"Healthy Tomato Plant","score":0.05}]`))
	}))
	defer srv.Close()

	client, err := huggingface.NewClient(srv.URL+"/", "org/leaf-model", "hf-token", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "org/leaf-model", client.Model())

	preds, err := client.Classify(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "Tomato with Early Blight", preds[0].Label)
	assert.InDelta(t, 0.91, preds[0].Score, 1e-9)
	assert.Equal(t, testImage().Data, gotBody)
}

func TestClassify_NoTokenOmitsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"label":"a","score":1}]`))
	}))
	defer srv.Close()

	client, err := huggingface.NewClient(srv.URL, "m", "", 0)
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), testImage())
	require.NoError(t, err)
}

func TestClassify_BatchedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[{"label":"Apple Scab","score":0.7}]]`))
	}))
	defer srv.Close()

	client, _ := huggingface.NewClient(srv.URL, "m", "", time.Second)
	preds, err := client.Classify(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "Apple Scab", preds[0].Label)
}

func TestClassify_ModelLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model org/leaf-model is currently loading","estimated_time":20.0}`))
	}))
	defer srv.Close()

	client, _ := huggingface.NewClient(srv.URL, "org/leaf-model", "", time.Second)
	_, err := client.Classify(context.Background(), testImage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrClassification))
	assert.Contains(t, err.Error(), "currently loading")
	assert.Contains(t, err.Error(), "status 503")
}

func TestClassify_ErrorBodyWithOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"bad image"}`))
	}))
	defer srv.Close()

	client, _ := huggingface.NewClient(srv.URL, "m", "", time.Second)
	_, err := client.Classify(context.Background(), testImage())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrClassification)
	assert.Contains(t, err.Error(), "bad image")
}

func TestClassify_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer srv.Close()

	client, _ := huggingface.NewClient(srv.URL, "m", "bad", time.Second)
	_, err := client.Classify(context.Background(), testImage())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrClassification)
	assert.Contains(t, err.Error(), "status 401: unauthorized")
}

func TestClassify_LongErrorKeepsRunes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		// odd prefix puts byte 200 in the middle of a two-byte rune
		_, _ = w.Write([]byte("x" + strings.Repeat("é", 150)))
	}))
	defer srv.Close()

	client, _ := huggingface.NewClient(srv.URL, "m", "", time.Second)
	_, err := client.Classify(context.Background(), testImage())
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()), "error message is not valid UTF-8: %q", err.Error())
	assert.True(t, strings.HasSuffix(err.Error(), "é..."), "expected truncated message, got %q", err.Error())
}

func TestClassify_EmptyImage(t *testing.T) {
	client, _ := huggingface.NewClient("http://127.0.0.1:1", "m", "", time.Second)
	_, err := client.Classify(context.Background(), &types.ImageInput{})
	assert.ErrorIs(t, err, types.ErrNoImage)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := huggingface.NewClient("", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, huggingface.DefaultModel, client.Model())
}
