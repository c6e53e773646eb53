// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// dbtx is satisfied by both *sql.Conn and *sql.Tx so the missing-parts
// probes can run on a reader connection or inside a backfill transaction.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const movieCols = `id, title, overview, vote_average, vote_count, release_date, popularity, poster_path, backdrop_path, logos_json, genres`
const seriesCols = `id, name, overview, vote_average, vote_count, first_air_date, popularity, poster_path, backdrop_path, logos_json, genres, networks, number_of_seasons, number_of_episodes`

func scanMovie(row interface{ Scan(...any) error }) (*TitleRow, error) {
	var t TitleRow
	var name, over, date, poster, backdrop, logos, genres sql.NullString
	var rating, pop sql.NullFloat64
	var votes sql.NullInt64
	err := row.Scan(&t.ID, &name, &over, &rating, &votes, &date, &pop, &poster, &backdrop, &logos, &genres)
	if err != nil {
		return nil, err
	}
	t.Kind = "movie"
	t.Name, t.Overview, t.Date = nullStr(name), nullStr(over), nullStr(date)
	t.Rating, t.VoteCount, t.Pop = nullFloat(rating), nullInt(votes), nullFloat(pop)
	t.Poster, t.Backdrop, t.LogosJSON, t.Genres = nullStr(poster), nullStr(backdrop), nullStr(logos), nullStr(genres)
	return &t, nil
}

func scanSeries(row interface{ Scan(...any) error }) (*TitleRow, error) {
	var t TitleRow
	var name, over, date, poster, backdrop, logos, genres, networks sql.NullString
	var rating, pop sql.NullFloat64
	var votes, seasons, episodes sql.NullInt64
	err := row.Scan(&t.ID, &name, &over, &rating, &votes, &date, &pop, &poster, &backdrop, &logos, &genres, &networks, &seasons, &episodes)
	if err != nil {
		return nil, err
	}
	t.Kind = "series"
	t.Name, t.Overview, t.Date = nullStr(name), nullStr(over), nullStr(date)
	t.Rating, t.VoteCount, t.Pop = nullFloat(rating), nullInt(votes), nullFloat(pop)
	t.Poster, t.Backdrop, t.LogosJSON, t.Genres = nullStr(poster), nullStr(backdrop), nullStr(logos), nullStr(genres)
	t.Networks = nullStr(networks)
	t.Seasons, t.Episodes = nullInt(seasons), nullInt(episodes)
	return &t, nil
}

// MovieByID returns the movie row or nil when absent.
func (r *Reader) MovieByID(ctx context.Context, id int64) (*TitleRow, error) {
	row := r.conn.QueryRowContext(ctx, `SELECT `+movieCols+` FROM movies WHERE id=? LIMIT 1`, id)
	t, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// SeriesByID returns the series row or nil when absent.
func (r *Reader) SeriesByID(ctx context.Context, id int64) (*TitleRow, error) {
	row := r.conn.QueryRowContext(ctx, `SELECT `+seriesCols+` FROM series WHERE id=? LIMIT 1`, id)
	t, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// TopMovies returns movies ordered by popularity descending.
func (r *Reader) TopMovies(ctx context.Context, limit int) ([]TitleRow, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+movieCols+` FROM movies ORDER BY COALESCE(popularity,0) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// TopSeries returns series ordered by popularity descending.
func (r *Reader) TopSeries(ctx context.Context, limit int) ([]TitleRow, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+seriesCols+` FROM series ORDER BY COALESCE(popularity,0) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSeries)
}

// SeriesOnNetworks returns series whose networks label contains any needle,
// ordered by popularity descending. Matching is case-sensitive substring,
// mirroring how ingestion writes the label.
func (r *Reader) SeriesOnNetworks(ctx context.Context, needles []string, limit int) ([]TitleRow, error) {
	if len(needles) == 0 {
		return nil, nil
	}
	preds := make([]string, len(needles))
	args := make([]any, 0, len(needles)+1)
	for i, n := range needles {
		preds[i] = `COALESCE(networks,'') LIKE ?`
		args = append(args, "%"+n+"%")
	}
	args = append(args, limit)
	q := `SELECT ` + seriesCols + ` FROM series WHERE ` + strings.Join(preds, " OR ") +
		` ORDER BY COALESCE(popularity,0) DESC LIMIT ?`
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSeries)
}

// TopRatedMovies picks the 12 highest-voted of the 48 best-rated movies.
func (r *Reader) TopRatedMovies(ctx context.Context) ([]TitleRow, error) {
	q := `SELECT ` + movieCols + ` FROM (
		SELECT ` + movieCols + ` FROM movies ORDER BY COALESCE(vote_average,0) DESC LIMIT 48
	) ORDER BY COALESCE(vote_count,0) DESC LIMIT 12`
	rows, err := r.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// TopRatedSeries picks the 12 highest-voted of the 48 best-rated series.
func (r *Reader) TopRatedSeries(ctx context.Context) ([]TitleRow, error) {
	q := `SELECT ` + seriesCols + ` FROM (
		SELECT ` + seriesCols + ` FROM series ORDER BY COALESCE(vote_average,0) DESC LIMIT 48
	) ORDER BY COALESCE(vote_count,0) DESC LIMIT 12`
	rows, err := r.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSeries)
}

const unionCols = `id, kind, name, dt, rating, pop, poster, backdrop, logos`

// unionSelect builds the movies+series union the browse and genre queries
// share. whereM/whereS may be empty or a full "WHERE ..." clause.
func unionSelect(whereM, whereS, order string) string {
	return `SELECT ` + unionCols + ` FROM (
		SELECT id, 'movie' kind, title name, release_date dt, vote_average rating, popularity pop,
		       poster_path poster, backdrop_path backdrop, logos_json logos, COALESCE(genres,'') gen
		FROM movies ` + whereM + `
		UNION ALL
		SELECT id, 'series' kind, name name, first_air_date dt, vote_average rating, popularity pop,
		       poster_path poster, backdrop_path backdrop, logos_json logos, COALESCE(genres,'') gen
		FROM series ` + whereS + `
	) ORDER BY ` + order + ` LIMIT ? OFFSET ?`
}

func scanUnion(rows *sql.Rows) (*TitleRow, error) {
	var t TitleRow
	var name, date, poster, backdrop, logos sql.NullString
	var rating, pop sql.NullFloat64
	if err := rows.Scan(&t.ID, &t.Kind, &name, &date, &rating, &pop, &poster, &backdrop, &logos); err != nil {
		return nil, err
	}
	t.Name, t.Date = nullStr(name), nullStr(date)
	t.Rating, t.Pop = nullFloat(rating), nullFloat(pop)
	t.Poster, t.Backdrop, t.LogosJSON = nullStr(poster), nullStr(backdrop), nullStr(logos)
	return &t, nil
}

// BrowseOrder maps a browse mode to its ORDER BY clause.
var BrowseOrder = map[string]string{
	"popular": "COALESCE(pop,0) DESC",
	"rating":  "COALESCE(rating,0) DESC, COALESCE(pop,0) DESC",
	"recent":  "COALESCE(dt,'') DESC, COALESCE(pop,0) DESC",
	"genre":   "COALESCE(pop,0) DESC",
}

// Browse pages through the movies+series union for the non-genre modes.
func (r *Reader) Browse(ctx context.Context, mode string, limit, offset int) ([]TitleRow, error) {
	order, ok := BrowseOrder[mode]
	if !ok {
		return nil, fmt.Errorf("unknown browse mode %q", mode)
	}
	rows, err := r.conn.QueryContext(ctx, unionSelect("", "", order), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, scanUnion)
}

// BrowseGenreLike pages the union filtered by substring match on the genres
// label column. Used when the normalized edge tables are absent.
func (r *Reader) BrowseGenreLike(ctx context.Context, needles []string, limit, offset int) ([]TitleRow, error) {
	preds := make([]string, len(needles))
	args := make([]any, 0, len(needles)+2)
	for i, n := range needles {
		preds[i] = `gen LIKE ?`
		args = append(args, "%"+n+"%")
	}
	where := strings.Join(preds, " OR ")
	q := `SELECT ` + unionCols + ` FROM (
		SELECT id, 'movie' kind, title name, release_date dt, vote_average rating, popularity pop,
		       poster_path poster, backdrop_path backdrop, logos_json logos, COALESCE(genres,'') gen
		FROM movies
		UNION ALL
		SELECT id, 'series' kind, name name, first_air_date dt, vote_average rating, popularity pop,
		       poster_path poster, backdrop_path backdrop, logos_json logos, COALESCE(genres,'') gen
		FROM series
	) WHERE ` + where + ` ORDER BY COALESCE(pop,0) DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, scanUnion)
}

// BrowseGenreEdges pages the union joined through the normalized genre
// tables, matching any of the given genre names exactly.
func (r *Reader) BrowseGenreEdges(ctx context.Context, names []string, limit, offset int) ([]TitleRow, error) {
	ph := placeholders(len(names))
	q := `SELECT DISTINCT ` + unionCols + ` FROM (
		SELECT m.id id, 'movie' kind, m.title name, m.release_date dt, m.vote_average rating, m.popularity pop,
		       m.poster_path poster, m.backdrop_path backdrop, m.logos_json logos
		FROM movies m
		JOIN title_genres tg ON tg.media_type='movie' AND tg.tmdb_id=m.id
		JOIN genres g ON g.media_type='movie' AND g.genre_id=tg.genre_id
		WHERE g.name IN (` + ph + `)
		UNION ALL
		SELECT s.id id, 'series' kind, s.name name, s.first_air_date dt, s.vote_average rating, s.popularity pop,
		       s.poster_path poster, s.backdrop_path backdrop, s.logos_json logos
		FROM series s
		JOIN title_genres tg ON tg.media_type='tv' AND tg.tmdb_id=s.id
		JOIN genres g ON g.media_type='tv' AND g.genre_id=tg.genre_id
		WHERE g.name IN (` + ph + `)
	) ORDER BY COALESCE(pop,0) DESC LIMIT ? OFFSET ?`
	args := make([]any, 0, 2*len(names)+2)
	for _, n := range names {
		args = append(args, n)
	}
	for _, n := range names {
		args = append(args, n)
	}
	args = append(args, limit, offset)
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, scanUnion)
}

// Search matches the localized-or-base name and overview by substring,
// ordered by popularity descending. The overview LIKE is unindexed, which
// is acceptable at the current corpus size.
func (r *Reader) Search(ctx context.Context, lang, query string, limit int) ([]TitleRow, error) {
	like := "%" + query + "%"
	q := `SELECT ` + unionCols + ` FROM (
		SELECT m.id id, 'movie' kind, COALESCE(tt.title, m.title) name, m.release_date dt,
		       m.vote_average rating, m.popularity pop, m.poster_path poster, m.backdrop_path backdrop,
		       m.logos_json logos, COALESCE(tt.overview, m.overview) over
		FROM movies m
		LEFT JOIN title_translations tt
		  ON tt.media_type='movie' AND tt.tmdb_id=m.id AND tt.iso_639_1=?
		UNION ALL
		SELECT s.id id, 'series' kind, COALESCE(tt.title, s.name) name, s.first_air_date dt,
		       s.vote_average rating, s.popularity pop, s.poster_path poster, s.backdrop_path backdrop,
		       s.logos_json logos, COALESCE(tt.overview, s.overview) over
		FROM series s
		LEFT JOIN title_translations tt
		  ON tt.media_type='tv' AND tt.tmdb_id=s.id AND tt.iso_639_1=?
	) WHERE COALESCE(name,'') LIKE ? OR COALESCE(over,'') LIKE ?
	ORDER BY COALESCE(pop,0) DESC LIMIT ?`
	rows, err := r.conn.QueryContext(ctx, q, lang, lang, like, like, limit)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, scanUnion)
}

// Translated resolves the localized title and overview with region-exact
// lookup first, then language-only. Both nil means the caller should fall
// back to the base columns.
func (r *Reader) Translated(ctx context.Context, mt MediaType, id int64, lang, region string) (title, overview *string, err error) {
	return translated(ctx, r.conn, mt, id, lang, region)
}

func translated(ctx context.Context, q dbtx, mt MediaType, id int64, lang, region string) (*string, *string, error) {
	var t, o sql.NullString
	if region != "" {
		err := q.QueryRowContext(ctx,
			`SELECT title, overview FROM title_translations
			 WHERE media_type=? AND tmdb_id=? AND iso_639_1=? AND iso_3166_1=? LIMIT 1`,
			string(mt), id, lang, region).Scan(&t, &o)
		if err == nil {
			return nullStr(t), nullStr(o), nil
		}
		if err != sql.ErrNoRows {
			return nil, nil, err
		}
	}
	err := q.QueryRowContext(ctx,
		`SELECT title, overview FROM title_translations
		 WHERE media_type=? AND tmdb_id=? AND iso_639_1=? LIMIT 1`,
		string(mt), id, lang).Scan(&t, &o)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return nullStr(t), nullStr(o), nil
}

// Trailer returns the single stored video row for the title, or nil.
func (r *Reader) Trailer(ctx context.Context, mt MediaType, id int64) (*VideoRow, error) {
	var key, site sql.NullString
	err := r.conn.QueryRowContext(ctx,
		`SELECT key, site FROM title_videos WHERE media_type=? AND tmdb_id=? LIMIT 1`,
		string(mt), id).Scan(&key, &site)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &VideoRow{Key: nullStr(key), Site: nullStr(site)}, nil
}

// Seasons lists seasons for the series in ascending order.
func (r *Reader) Seasons(ctx context.Context, seriesID int64) ([]SeasonRow, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT season_number, COALESCE(episode_count,0) FROM tv_seasons WHERE series_id=? ORDER BY season_number ASC`,
		seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SeasonRow
	for rows.Next() {
		var s SeasonRow
		if err := rows.Scan(&s.Number, &s.EpisodeCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MinPositiveSeason returns the lowest positive season number present in
// tv_episodes, or 0 when none exists.
func (r *Reader) MinPositiveSeason(ctx context.Context, seriesID int64) (int64, error) {
	var sn sql.NullInt64
	err := r.conn.QueryRowContext(ctx,
		`SELECT MIN(season_number) FROM tv_episodes WHERE series_id=? AND season_number>0`,
		seriesID).Scan(&sn)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	if !sn.Valid {
		return 0, nil
	}
	return sn.Int64, nil
}

// Episodes lists the episodes of one season in ascending order.
func (r *Reader) Episodes(ctx context.Context, seriesID, season int64) ([]EpisodeRow, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT episode_number, name, runtime, still_path FROM tv_episodes
		 WHERE series_id=? AND season_number=? ORDER BY episode_number ASC`,
		seriesID, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EpisodeRow
	for rows.Next() {
		var e EpisodeRow
		var name, still sql.NullString
		var runtime sql.NullInt64
		if err := rows.Scan(&e.Number, &name, &runtime, &still); err != nil {
			return nil, err
		}
		e.Name, e.Runtime, e.Still = nullStr(name), nullInt(runtime), nullStr(still)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cast lists up to limit cast rows ordered by billing.
func (r *Reader) Cast(ctx context.Context, mt MediaType, id int64, limit int) ([]CastRow, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT name, character, COALESCE(ord,9999), profile_path FROM title_cast
		 WHERE media_type=? AND tmdb_id=? ORDER BY COALESCE(ord,9999) ASC LIMIT ?`,
		string(mt), id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CastRow
	for rows.Next() {
		var c CastRow
		var name, role, profile sql.NullString
		if err := rows.Scan(&name, &role, &c.Order, &profile); err != nil {
			return nil, err
		}
		c.Name, c.Role, c.Profile = nullStr(name), nullStr(role), nullStr(profile)
		out = append(out, c)
	}
	return out, rows.Err()
}

func collect(rows *sql.Rows, scan func(interface{ Scan(...any) error }) (*TitleRow, error)) ([]TitleRow, error) {
	defer rows.Close()
	var out []TitleRow
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func collectRows(rows *sql.Rows, scan func(*sql.Rows) (*TitleRow, error)) ([]TitleRow, error) {
	defer rows.Close()
	var out []TitleRow
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
