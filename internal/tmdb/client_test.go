// SPDX-License-Identifier: MIT

package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		ForegroundRPS: 1000,
		BackgroundRPS: 1000,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestGetJSONSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"id":42}`))
	}))

	status, body := c.GetJSON(context.Background(), Foreground, c.endpoint("/movie/42", url.Values{}), time.Second)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":42}`, string(body))
}

func TestGetJSONNonObjectPayloadDiscarded(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2,3]`))
	}))

	status, body := c.GetJSON(context.Background(), Foreground, c.endpoint("/x", url.Values{}), time.Second)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body)
}

func TestGetJSONRetriesOn429(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))

	status, body := c.GetJSON(context.Background(), Background, c.endpoint("/x", url.Values{}), time.Second)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetJSONGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	status, body := c.GetJSON(context.Background(), Foreground, c.endpoint("/x", url.Values{}), time.Second)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Nil(t, body)
	assert.Equal(t, int64(maxAttempts), calls.Load())
}

func TestGetJSONStopsOnPermanentClientError(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	status, body := c.GetJSON(context.Background(), Foreground, c.endpoint("/x", url.Values{}), time.Second)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Nil(t, body)
	assert.Equal(t, int64(1), calls.Load())
}

func TestDisabledClientReturnsSentinel(t *testing.T) {
	c, err := New(Options{BaseURL: "http://unused", ForegroundRPS: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	status, body := c.GetJSON(context.Background(), Foreground, "http://unused/x", time.Second)
	assert.Equal(t, 0, status)
	assert.Nil(t, body)
}

func TestTitleDecodesMoviePayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		assert.Equal(t, "de-DE", r.URL.Query().Get("language"))
		w.Write([]byte(`{"id":603,"title":"Die Matrix","genres":[{"id":28,"name":"Action"}],"vote_average":8.2}`))
	}))

	status, title := c.Title(context.Background(), Foreground, "movie", 603, "de-DE", time.Second)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, title)
	assert.Equal(t, "Die Matrix", *title.Title)
	require.Len(t, title.Genres, 1)
	assert.Equal(t, "Action", title.Genres[0].Name)
}

func TestTitleAnyPrefersTheSideThatExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tv/100" {
			w.Write([]byte(`{"id":100,"name":"Show"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	mediaType, status, title := c.TitleAny(context.Background(), 100, "en", time.Second)
	assert.Equal(t, "tv", mediaType)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, title)
	assert.Equal(t, "Show", *title.Name)
}

func TestTrendingRejectsUnknownWindow(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	status, items := c.Trending(context.Background(), Foreground, "month", "en", time.Second)
	assert.Equal(t, 0, status)
	assert.Nil(t, items)
}

func TestTrendingDecodesMixedResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trending/all/day", r.URL.Path)
		w.Write([]byte(`{"results":[
			{"id":1,"media_type":"movie","title":"M","release_date":"2024-01-01"},
			{"id":2,"media_type":"tv","name":"S","first_air_date":"2020-05-05"}
		]}`))
	}))

	status, items := c.Trending(context.Background(), Foreground, "day", "en", time.Second)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, items, 2)
	assert.Equal(t, "movie", items[0].MediaType)
	assert.Equal(t, "S", *items[1].Name)
}

func TestSeasonPath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/7/season/2", r.URL.Path)
		w.Write([]byte(`{"episodes":[{"episode_number":1,"name":"Pilot","runtime":42}]}`))
	}))

	status, sd := c.Season(context.Background(), Background, 7, 2, "en", time.Second)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, sd)
	require.Len(t, sd.Episodes, 1)
	assert.Equal(t, int64(42), *sd.Episodes[0].Runtime)
}
