package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/models"
	"github.com/maheshrc27/postcadence/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdeogramGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Api-Key"))
		var req transfer.IdeogramRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red kite", req.ImageRequest.Prompt)
		assert.Equal(t, "ASPECT_10_16", req.ImageRequest.AspectRatio)
		assert.Equal(t, "V_2", req.ImageRequest.Model)
		w.Write([]byte(`{"created":"now","data":[{"url":"https://ideogram.example/1.png","prompt":"a red kite"}]}`))
	}))
	defer srv.Close()

	gen := NewIdeogramService(config.Ideogram{APIKey: "secret", APIURL: srv.URL}, srv.Client(), HTTPRetryConfig{})
	url, err := gen.Generate(t.Context(), "a red kite")
	require.NoError(t, err)
	assert.Equal(t, "https://ideogram.example/1.png", url)
}

func TestIdeogramFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"prompt rejected"}`},
		{"empty data", http.StatusOK, `{"data":[]}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen := NewIdeogramService(config.Ideogram{APIURL: srv.URL}, srv.Client(), HTTPRetryConfig{})
			_, err := gen.Generate(t.Context(), "prompt")
			var genErr *ImageGenerationError
			assert.ErrorAs(t, err, &genErr)
		})
	}
}

func TestIdeogramRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[{"url":"https://ideogram.example/2.png"}]}`))
	}))
	defer srv.Close()

	gen := NewIdeogramService(config.Ideogram{APIURL: srv.URL}, srv.Client(), HTTPRetryConfig{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1})
	url, err := gen.Generate(t.Context(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "https://ideogram.example/2.png", url)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMediaResolverIdempotent(t *testing.T) {
	gen := &fakeGenerator{url: "https://img.example/new.png"}
	resolver := NewMediaResolver(gen)
	post := &models.Post{ID: "p1", Text: "<b>launch</b> day"}

	ref, generated, err := resolver.Resolve(t.Context(), post)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, []string{"launch day"}, gen.prompts)

	post.ImageURL = ref
	again, generated, err := resolver.Resolve(t.Context(), post)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, gen.calls)
}

func TestMediaResolverWrapsGeneratorError(t *testing.T) {
	cause := &ImageGenerationError{Message: "no image data in the response"}
	resolver := NewMediaResolver(&fakeGenerator{err: cause})

	_, _, err := resolver.Resolve(t.Context(), &models.Post{ID: "p9", Text: "x"})
	var mediaErr *MediaGenerationError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "p9", mediaErr.PostID)
	assert.True(t, errors.Is(err, cause))
}
