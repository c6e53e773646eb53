// SPDX-License-Identifier: MIT

package backfill

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Idle keep-alive connections owned by the shared transport.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

type fixture struct {
	store     *store.Store
	scheduler *Scheduler
	calls     *atomic.Int64
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := tmdb.New(tmdb.Options{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		ForegroundRPS: 1000,
		BackgroundRPS: 1000,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sched := New(st, client, 2, 100, 10*time.Minute, zerolog.Nop())
	t.Cleanup(sched.Stop)
	return &fixture{store: st, scheduler: sched, calls: &calls}
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Pending() == 0 },
		5*time.Second, 10*time.Millisecond, "scheduler did not drain")
}

func movieStub() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/1":
			w.Write([]byte(`{"id":1,"title":"Heat","overview":"Crime saga","vote_average":8.3,"vote_count":5000,
				"release_date":"1995-12-15","popularity":40.5,"poster_path":"/p.jpg","backdrop_path":"/b.jpg",
				"genres":[{"id":28,"name":"Action"},{"id":80,"name":"Crime"}]}`))
		case "/movie/1/images":
			w.Write([]byte(`{"logos":[{"file_path":"/l-en.png","iso_639_1":"en"},{"file_path":"/l2-en.png","iso_639_1":"en"},{"file_path":"/l-und.png","iso_639_1":null}]}`))
		case "/movie/1/videos":
			w.Write([]byte(`{"results":[{"key":null,"site":"YouTube"},{"key":"abc123","site":"YouTube","name":"Trailer","official":true}]}`))
		case "/movie/1/credits":
			w.Write([]byte(`{"cast":[{"id":10,"credit_id":"c1","name":"Al Pacino","character":"Vincent","order":0},
				{"id":11,"credit_id":"c2","name":"Robert De Niro","character":"Neil","order":1}]}`))
		case "/movie/1/translations":
			w.Write([]byte(`{"translations":[
				{"iso_639_1":"de","iso_3166_1":"DE","data":{"title":"Heat DE","overview":"Deutsche Fassung"}},
				{"iso_639_1":"en","iso_3166_1":"","data":{"title":"ignored, no region"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestFullBackfillPopulatesEveryPart(t *testing.T) {
	fx := newFixture(t, movieStub())
	ctx := context.Background()

	fx.scheduler.Submit(store.Movie, 1, "de", "DE", true)
	waitIdle(t, fx.scheduler)

	r, err := fx.store.Reader(ctx)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.MovieByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Heat", *row.Name)
	assert.Equal(t, "Action, Crime", *row.Genres)
	require.NotNil(t, row.LogosJSON)
	assert.JSONEq(t, `{"en":"/l-en.png","und":"/l-und.png"}`, *row.LogosJSON, "first logo per language wins")

	v, err := r.Trailer(ctx, store.Movie, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "abc123", *v.Key, "keyless videos are skipped")

	cast, err := r.Cast(ctx, store.Movie, 1, 24)
	require.NoError(t, err)
	require.Len(t, cast, 2)
	assert.Equal(t, "Al Pacino", *cast[0].Name)

	title, _, err := r.Translated(ctx, store.Movie, 1, "de", "DE")
	require.NoError(t, err)
	require.NotNil(t, title)
	assert.Equal(t, "Heat DE", *title)

	// Region-less translation entries are dropped.
	title, _, err = r.Translated(ctx, store.Movie, 1, "en", "")
	require.NoError(t, err)
	assert.Nil(t, title)

	missing, err := r.MissingParts(ctx, store.Movie, 1, "de", "DE", true)
	require.NoError(t, err)
	assert.False(t, missing.Any())
}

func TestRepeatSubmissionSuppressedByRecentWindow(t *testing.T) {
	fx := newFixture(t, movieStub())

	fx.scheduler.Submit(store.Movie, 1, "de", "DE", true)
	waitIdle(t, fx.scheduler)
	calls := fx.calls.Load()
	require.Greater(t, calls, int64(0))

	fx.scheduler.Submit(store.Movie, 1, "de", "DE", true)
	waitIdle(t, fx.scheduler)
	assert.Equal(t, calls, fx.calls.Load(), "second submit within TTL must not refetch")
}

func TestCompletedTitleBecomesNoop(t *testing.T) {
	fx := newFixture(t, movieStub())

	fx.scheduler.Submit(store.Movie, 1, "de", "DE", true)
	waitIdle(t, fx.scheduler)
	calls := fx.calls.Load()

	// Expire the recent window by hand so only the database dedupes.
	fx.scheduler.mu.Lock()
	for k := range fx.scheduler.recent {
		fx.scheduler.recent[k] = time.Now().Add(-time.Hour)
	}
	fx.scheduler.mu.Unlock()

	fx.scheduler.Submit(store.Movie, 1, "de", "DE", true)
	waitIdle(t, fx.scheduler)
	assert.Equal(t, calls, fx.calls.Load(), "nothing missing, so no provider calls")
}

func TestProviderFailureLeavesCatalogUntouched(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	fx.scheduler.Submit(store.Movie, 1, "en", "", true)
	waitIdle(t, fx.scheduler)

	r, err := fx.store.Reader(ctx)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.MovieByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestTVBackfillFetchesSeasonsAndFirstSeasonEpisodes(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tv/9":
			w.Write([]byte(`{"id":9,"name":"Show","first_air_date":"2020-05-05","number_of_seasons":2,"number_of_episodes":18,
				"networks":[{"id":1,"name":"Netflix"}],
				"seasons":[{"season_number":0,"episode_count":3},{"season_number":1,"id":100,"episode_count":10},{"season_number":2,"id":101,"episode_count":8}]}`))
		case "/tv/9/season/1":
			w.Write([]byte(`{"episodes":[{"episode_number":1,"name":"Pilot","runtime":42,"still_path":"/s1.jpg"},{"episode_number":2,"name":"Two"}]}`))
		case "/tv/9/images":
			w.Write([]byte(`{"logos":[]}`))
		case "/tv/9/videos":
			w.Write([]byte(`{"results":[]}`))
		case "/tv/9/credits":
			w.Write([]byte(`{"cast":[]}`))
		case "/tv/9/translations":
			w.Write([]byte(`{"translations":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	fx.scheduler.Submit(store.TV, 9, "en", "", true)
	waitIdle(t, fx.scheduler)

	r, err := fx.store.Reader(ctx)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.SeriesByID(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Netflix", *row.Networks)

	seasons, err := r.Seasons(ctx, 9)
	require.NoError(t, err)
	require.Len(t, seasons, 2, "season 0 specials are skipped")
	assert.Equal(t, int64(1), seasons[0].Number)

	eps, err := r.Episodes(ctx, 9, 1)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "Pilot", *eps[0].Name)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	fx := newFixture(t, movieStub())

	fx.scheduler.Submit("album", 1, "en", "", false)
	fx.scheduler.Submit(store.Movie, 0, "en", "", false)
	waitIdle(t, fx.scheduler)
	assert.Equal(t, int64(0), fx.calls.Load())
}

func TestSubmitAfterStopIsIgnored(t *testing.T) {
	fx := newFixture(t, movieStub())
	fx.scheduler.Stop()
	fx.scheduler.Submit(store.Movie, 1, "en", "", false)
	assert.Equal(t, int64(0), fx.calls.Load())
}
