// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func str(s string) *string   { return &s }
func f64(f float64) *float64 { return &f }
func i64(n int64) *int64     { return &n }

func seedMovie(t *testing.T, s *Store, m MovieUpsert) {
	t.Helper()
	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertMovie(context.Background(), m))
	require.NoError(t, w.Commit())
}

func seedSeries(t *testing.T, s *Store, sr SeriesUpsert) {
	t.Helper()
	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertSeries(context.Background(), sr))
	require.NoError(t, w.Commit())
}

func TestOpenCreatesSchemaWithoutGenreEdges(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.Caps().GenreEdges, "migrations must not create the ingestion-owned genre tables")
}

func TestMovieRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{
		ID: 1, Title: str("Heat"), Overview: str("Crime saga"),
		VoteAverage: f64(8.3), VoteCount: i64(5000), ReleaseDate: str("1995-12-15"),
		Popularity: f64(40), PosterPath: str("/p.jpg"), Genres: str("Action, Crime"),
	})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	got, err := r.MovieByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "movie", got.Kind)
	assert.Equal(t, "Heat", *got.Name)
	assert.Equal(t, "Action, Crime", *got.Genres)
	assert.Nil(t, got.Backdrop)

	missing, err := r.MovieByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertMovieRefreshesExistingRow(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("Old"), Popularity: f64(1)})
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("New"), Popularity: f64(9)})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	got, err := r.MovieByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "New", *got.Name)
	assert.Equal(t, 9.0, *got.Pop)
}

func TestTopRatedMoviesPrefersVoteCountWithinBand(t *testing.T) {
	s := openTestStore(t)
	// Highest rated but barely voted; should rank below the well-voted one.
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("Obscure"), VoteAverage: f64(9.9), VoteCount: i64(3)})
	seedMovie(t, s, MovieUpsert{ID: 2, Title: str("Beloved"), VoteAverage: f64(8.5), VoteCount: i64(9000)})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.TopRatedMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)
}

func TestBrowseUnionOrdersByPopularity(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("M"), Popularity: f64(5)})
	seedSeries(t, s, SeriesUpsert{ID: 2, Name: str("S"), Popularity: f64(50)})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.Browse(context.Background(), "popular", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "series", rows[0].Kind)
	assert.Equal(t, "movie", rows[1].Kind)
}

func TestBrowseGenreLikeMatchesLabel(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("A"), Genres: str("Action, Comedy"), Popularity: f64(1)})
	seedMovie(t, s, MovieUpsert{ID: 2, Title: str("B"), Genres: str("Drama"), Popularity: f64(2)})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.BrowseGenreLike(context.Background(), []string{"Action"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ID)
}

func TestSearchPrefersTranslatedNameAndScansOverview(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("The Matrix"), Overview: str("A hacker discovers reality"), Popularity: f64(10)})

	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertTranslation(context.Background(), Movie, 1, TranslationUpsert{
		Lang: "de", Region: "DE", Title: str("Die Matrix"),
	}))
	require.NoError(t, w.Commit())

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.Search(context.Background(), "de", "Die Matrix", 12)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Die Matrix", *rows[0].Name)

	rows, err = r.Search(context.Background(), "en", "hacker", 12)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = r.Search(context.Background(), "en", "nothing here", 12)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTranslatedRegionFallback(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("Base")})

	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertTranslation(context.Background(), Movie, 1, TranslationUpsert{
		Lang: "fr", Region: "FR", Title: str("Titre"), Overview: str("Resume"),
	}))
	require.NoError(t, w.Commit())

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	// Region miss still resolves through the language-only lookup.
	title, over, err := r.Translated(context.Background(), Movie, 1, "fr", "CA")
	require.NoError(t, err)
	require.NotNil(t, title)
	assert.Equal(t, "Titre", *title)
	assert.Equal(t, "Resume", *over)

	title, over, err = r.Translated(context.Background(), Movie, 1, "ja", "")
	require.NoError(t, err)
	assert.Nil(t, title)
	assert.Nil(t, over)
}

func TestSeriesOnNetworks(t *testing.T) {
	s := openTestStore(t)
	seedSeries(t, s, SeriesUpsert{ID: 1, Name: str("Show A"), Networks: str("Netflix"), Popularity: f64(9)})
	seedSeries(t, s, SeriesUpsert{ID: 2, Name: str("Show B"), Networks: str("HBO, Max"), Popularity: f64(5)})
	seedSeries(t, s, SeriesUpsert{ID: 3, Name: str("Show C"), Networks: str("ARD"), Popularity: f64(99)})

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	rows, err := r.SeriesOnNetworks(context.Background(), []string{"Netflix", "Max"}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(2), rows[1].ID)
}

func TestSeasonsEpisodesAndMinPositiveSeason(t *testing.T) {
	s := openTestStore(t)
	seedSeries(t, s, SeriesUpsert{ID: 7, Name: str("Show")})

	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertSeason(context.Background(), 7, SeasonUpsert{Number: 2, EpisodeCount: i64(8)}))
	require.NoError(t, w.UpsertSeason(context.Background(), 7, SeasonUpsert{Number: 1, EpisodeCount: i64(10)}))
	require.NoError(t, w.UpsertEpisode(context.Background(), 7, 2, EpisodeUpsert{Number: 1, Name: str("Pilot"), Runtime: i64(42)}))
	require.NoError(t, w.Commit())

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	seasons, err := r.Seasons(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, int64(1), seasons[0].Number)

	min, err := r.MinPositiveSeason(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), min)

	eps, err := r.Episodes(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "Pilot", *eps[0].Name)
}

func TestReplaceCastAndOrdering(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("M")})

	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.ReplaceCast(context.Background(), Movie, 1, []CastUpsert{
		{PersonID: 10, CreditID: "c10", Name: str("Second"), Order: i64(1)},
		{PersonID: 11, CreditID: "c11", Name: str("First"), Order: i64(0)},
	}))
	require.NoError(t, w.Commit())

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	cast, err := r.Cast(context.Background(), Movie, 1, 24)
	require.NoError(t, err)
	require.Len(t, cast, 2)
	assert.Equal(t, "First", *cast[0].Name)

	// Replacing again drops the old rows.
	w, err = s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.ReplaceCast(context.Background(), Movie, 1, []CastUpsert{
		{PersonID: 12, CreditID: "c12", Name: str("Only"), Order: i64(0)},
	}))
	require.NoError(t, w.Commit())

	cast, err = r.Cast(context.Background(), Movie, 1, 24)
	require.NoError(t, err)
	require.Len(t, cast, 1)
}

func TestUpsertVideoKeepsSingleRow(t *testing.T) {
	s := openTestStore(t)
	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("M")})

	w, err := s.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.UpsertVideo(context.Background(), Movie, 1, VideoUpsert{Key: str("abc"), Site: str("YouTube")}))
	require.NoError(t, w.UpsertVideo(context.Background(), Movie, 1, VideoUpsert{Key: str("def"), Site: str("YouTube")}))
	require.NoError(t, w.Commit())

	r, err := s.Reader(context.Background())
	require.NoError(t, err)
	defer r.Close()

	v, err := r.Trailer(context.Background(), Movie, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "def", *v.Key)
}

func TestMissingParts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r, err := s.Reader(ctx)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.MissingParts(ctx, Movie, 1, "en", "", true)
	require.NoError(t, err)
	assert.True(t, m.NeedBase)
	assert.True(t, m.NeedLogos)
	assert.True(t, m.NeedTranslations)
	assert.True(t, m.NeedCast)
	assert.True(t, m.NeedVideos)
	assert.True(t, m.Any())

	seedMovie(t, s, MovieUpsert{ID: 1, Title: str("M")})
	w, err := s.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.SetLogos(ctx, Movie, 1, `{"en":"/l.png"}`))
	require.NoError(t, w.UpsertTranslation(ctx, Movie, 1, TranslationUpsert{Lang: "en", Region: "US"}))
	require.NoError(t, w.UpsertVideo(ctx, Movie, 1, VideoUpsert{Key: str("k")}))
	require.NoError(t, w.ReplaceCast(ctx, Movie, 1, []CastUpsert{{PersonID: 1, CreditID: "c"}}))
	require.NoError(t, w.Commit())

	m, err = r.MissingParts(ctx, Movie, 1, "en", "US", true)
	require.NoError(t, err)
	assert.False(t, m.Any())

	// Shallow probe ignores cast and videos.
	m, err = r.MissingParts(ctx, Movie, 2, "en", "", false)
	require.NoError(t, err)
	assert.True(t, m.NeedBase)
	assert.False(t, m.NeedCast)
	assert.False(t, m.NeedVideos)

	// TV probe flags missing seasons and episodes.
	seedSeries(t, s, SeriesUpsert{ID: 9, Name: str("S")})
	m, err = r.MissingParts(ctx, TV, 9, "en", "", true)
	require.NoError(t, err)
	assert.True(t, m.NeedTV)
}
