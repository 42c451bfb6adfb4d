package media_info_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcdev12/watchroom/go/clients"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *MediaInfoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewMediaInfoClient(srv.URL, "secret")
	c.SetRetry(clients.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	return c
}

func TestGetVideo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/youtube/abc", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get(APIKeyHeader))
		_, _ = w.Write([]byte(`{"width":4,"height":3,"liveNow":false}`))
	})

	info, err := c.GetVideo(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, &VideoInfo{Width: 4, Height: 3}, info)
}

func TestGetVideoLive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"width":16,"height":9,"liveNow":true}`))
	})

	info, err := c.GetVideo(context.Background(), "live")
	require.NoError(t, err)
	require.True(t, info.LiveNow)
}

func TestGetVideoNotFound(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	})

	_, err := c.GetVideo(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 404 is not retried")
}

func TestGetVideoRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"width":21,"height":9,"liveNow":false}`))
	})

	info, err := c.GetVideo(context.Background(), "flaky")
	require.NoError(t, err)
	require.Equal(t, 21.0, info.Width)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetVideoLiveWithoutDimensions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"width":0,"height":0,"liveNow":true}`))
	})

	info, err := c.GetVideo(context.Background(), "live")
	require.NoError(t, err)
	require.Equal(t, &VideoInfo{LiveNow: true}, info)
}
