package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subinject/subinject/internal/config"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("#EXTM3U"))
	}))
	defer srv.Close()

	f := New(config.FetchConfig{Timeout: 5 * time.Second, UserAgent: "test-agent"})

	body, err := f.Fetch(context.Background(), srv.URL+"/master.m3u8")
	require.NoError(t, err)
	assert.Equal(t, []byte("#EXTM3U"), body)
}

func TestFetchNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(config.FetchConfig{Timeout: 5 * time.Second})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.m3u8")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestFetchTransportFailure(t *testing.T) {
	f := New(config.FetchConfig{Timeout: time.Second})

	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(config.FetchConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	assert.Error(t, err)
}
