package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientExtractParsesFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed/face", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "image.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces_count":1,"faces":[{"embedding":[0.1,0.2,0.3],"bbox":[1,2,3,4],"det_score":0.98}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	faces, err := client.Extract(context.Background(), []byte("fake-jpeg"))
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, faces[0].Embedding)
	assert.InDelta(t, 0.98, faces[0].DetScore, 1e-6)
}

func TestClientExtractZeroFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces_count":0,"faces":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	faces, err := client.Extract(context.Background(), []byte("fake-jpeg"))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestClientExtractUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model crashed"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Extract(context.Background(), []byte("fake-jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClientExtractContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Extract(ctx, []byte("fake-jpeg"))
	require.Error(t, err)
}
