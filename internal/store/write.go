// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"time"
)

// MovieUpsert carries the base fields of one provider movie payload.
// Nil pointers write NULL, never overwrite with empty strings.
type MovieUpsert struct {
	ID           int64
	Title        *string
	Overview     *string
	VoteAverage  *float64
	VoteCount    *int64
	ReleaseDate  *string
	Popularity   *float64
	PosterPath   *string
	BackdropPath *string
	Genres       *string // comma-joined label
}

// SeriesUpsert carries the base fields of one provider series payload.
type SeriesUpsert struct {
	ID           int64
	Name         *string
	Overview     *string
	VoteAverage  *float64
	VoteCount    *int64
	FirstAirDate *string
	Popularity   *float64
	PosterPath   *string
	BackdropPath *string
	Genres       *string
	Networks     *string
	Seasons      *int64
	Episodes     *int64
}

// VideoUpsert is the one video row kept per title.
type VideoUpsert struct {
	VideoID     *string
	Key         *string
	Site        *string
	Name        *string
	Type        *string
	Official    bool
	PublishedAt *string
	Lang        *string
	Region      *string
	Size        *int64
}

// CastUpsert is one billed cast member.
type CastUpsert struct {
	PersonID int64
	CreditID string
	CastID   *int64
	Name     *string
	Role     *string
	Order    *int64
	Profile  *string
}

// TranslationUpsert is one localized title/overview variant.
type TranslationUpsert struct {
	Lang     string // lowercase iso_639_1
	Region   string // uppercase iso_3166_1
	Title    *string
	Overview *string
	Tagline  *string
	Homepage *string
}

// SeasonUpsert is one positive-numbered season of a series.
type SeasonUpsert struct {
	Number       int64
	SeasonID     *int64
	Name         *string
	Overview     *string
	AirDate      *string
	PosterPath   *string
	EpisodeCount *int64
}

// EpisodeUpsert is one episode within a season.
type EpisodeUpsert struct {
	Number      int64
	EpisodeID   *int64
	Name        *string
	Overview    *string
	AirDate     *string
	Runtime     *int64
	StillPath   *string
	VoteAverage *float64
	VoteCount   *int64
}

// UpsertMovie inserts or refreshes the movie base row. logos_json is owned
// by SetLogos and left untouched here.
func (w *Writer) UpsertMovie(ctx context.Context, m MovieUpsert) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO movies(id,title,overview,vote_average,vote_count,release_date,popularity,poster_path,backdrop_path,genres)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  title=excluded.title,
		  overview=excluded.overview,
		  vote_average=excluded.vote_average,
		  vote_count=excluded.vote_count,
		  release_date=excluded.release_date,
		  popularity=excluded.popularity,
		  poster_path=excluded.poster_path,
		  backdrop_path=excluded.backdrop_path,
		  genres=excluded.genres`,
		m.ID, m.Title, m.Overview, m.VoteAverage, m.VoteCount, m.ReleaseDate,
		m.Popularity, m.PosterPath, m.BackdropPath, m.Genres)
	return err
}

// UpsertSeries inserts or refreshes the series base row.
func (w *Writer) UpsertSeries(ctx context.Context, s SeriesUpsert) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO series(id,name,overview,vote_average,vote_count,first_air_date,popularity,poster_path,backdrop_path,genres,networks,number_of_seasons,number_of_episodes)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  name=excluded.name,
		  overview=excluded.overview,
		  vote_average=excluded.vote_average,
		  vote_count=excluded.vote_count,
		  first_air_date=excluded.first_air_date,
		  popularity=excluded.popularity,
		  poster_path=excluded.poster_path,
		  backdrop_path=excluded.backdrop_path,
		  genres=excluded.genres,
		  networks=excluded.networks,
		  number_of_seasons=excluded.number_of_seasons,
		  number_of_episodes=excluded.number_of_episodes`,
		s.ID, s.Name, s.Overview, s.VoteAverage, s.VoteCount, s.FirstAirDate,
		s.Popularity, s.PosterPath, s.BackdropPath, s.Genres, s.Networks, s.Seasons, s.Episodes)
	return err
}

// SetLogos stores the per-language logo map as compact JSON. A missing base
// row makes this a no-op, matching the update-only contract.
func (w *Writer) SetLogos(ctx context.Context, mt MediaType, id int64, logosJSON string) error {
	table := "movies"
	if mt == TV {
		table = "series"
	}
	_, err := w.tx.ExecContext(ctx, `UPDATE `+table+` SET logos_json=? WHERE id=?`, logosJSON, id)
	return err
}

// UpsertVideo stores the single kept video for the title, replacing any
// previous pick.
func (w *Writer) UpsertVideo(ctx context.Context, mt MediaType, id int64, v VideoUpsert) error {
	official := 0
	if v.Official {
		official = 1
	}
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO title_videos(media_type,tmdb_id,video_id,key,site,name,type,official,published_at,iso_639_1,iso_3166_1,size)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(media_type,tmdb_id) DO UPDATE SET
		  video_id=excluded.video_id,
		  key=excluded.key,
		  site=excluded.site,
		  name=excluded.name,
		  type=excluded.type,
		  official=excluded.official,
		  published_at=excluded.published_at,
		  iso_639_1=excluded.iso_639_1,
		  iso_3166_1=excluded.iso_3166_1,
		  size=excluded.size`,
		string(mt), id, v.VideoID, v.Key, v.Site, v.Name, v.Type, official,
		v.PublishedAt, v.Lang, v.Region, v.Size)
	return err
}

// ReplaceCast swaps the full billed cast of a title in one go.
func (w *Writer) ReplaceCast(ctx context.Context, mt MediaType, id int64, cast []CastUpsert) error {
	if _, err := w.tx.ExecContext(ctx,
		`DELETE FROM title_cast WHERE media_type=? AND tmdb_id=?`, string(mt), id); err != nil {
		return err
	}
	for _, c := range cast {
		_, err := w.tx.ExecContext(ctx, `
			INSERT INTO title_cast(media_type,tmdb_id,person_id,credit_id,cast_id,name,character,ord,profile_path)
			VALUES(?,?,?,?,?,?,?,?,?)`,
			string(mt), id, c.PersonID, c.CreditID, c.CastID, c.Name, c.Role, c.Order, c.Profile)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertTranslation stores one localized variant keyed by language and region.
func (w *Writer) UpsertTranslation(ctx context.Context, mt MediaType, id int64, t TranslationUpsert) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO title_translations(media_type,tmdb_id,iso_639_1,iso_3166_1,title,overview,tagline,homepage)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(media_type,tmdb_id,iso_639_1,iso_3166_1) DO UPDATE SET
		  title=excluded.title,
		  overview=excluded.overview,
		  tagline=excluded.tagline,
		  homepage=excluded.homepage`,
		string(mt), id, t.Lang, t.Region, t.Title, t.Overview, t.Tagline, t.Homepage)
	return err
}

// UpsertSeason stores one season row. Callers skip season 0 (specials).
func (w *Writer) UpsertSeason(ctx context.Context, seriesID int64, s SeasonUpsert) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO tv_seasons(series_id,season_number,season_id,name,overview,air_date,poster_path,episode_count)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(series_id,season_number) DO UPDATE SET
		  season_id=excluded.season_id,
		  name=excluded.name,
		  overview=excluded.overview,
		  air_date=excluded.air_date,
		  poster_path=excluded.poster_path,
		  episode_count=excluded.episode_count`,
		seriesID, s.Number, s.SeasonID, s.Name, s.Overview, s.AirDate, s.PosterPath, s.EpisodeCount)
	return err
}

// UpsertEpisode stores one episode row.
func (w *Writer) UpsertEpisode(ctx context.Context, seriesID, season int64, e EpisodeUpsert) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO tv_episodes(series_id,season_number,episode_number,episode_id,name,overview,air_date,runtime,still_path,vote_average,vote_count)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(series_id,season_number,episode_number) DO UPDATE SET
		  episode_id=excluded.episode_id,
		  name=excluded.name,
		  overview=excluded.overview,
		  air_date=excluded.air_date,
		  runtime=excluded.runtime,
		  still_path=excluded.still_path,
		  vote_average=excluded.vote_average,
		  vote_count=excluded.vote_count`,
		seriesID, season, e.Number, e.EpisodeID, e.Name, e.Overview, e.AirDate,
		e.Runtime, e.StillPath, e.VoteAverage, e.VoteCount)
	return err
}

// MarkBackfillDone records that a named part of a title has been refreshed.
func (w *Writer) MarkBackfillDone(ctx context.Context, mt MediaType, id int64, part string) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO backfill_done(media_type,tmdb_id,part,done_at) VALUES(?,?,?,?)
		ON CONFLICT(media_type,tmdb_id,part) DO UPDATE SET done_at=excluded.done_at`,
		string(mt), id, part, time.Now().Unix())
	return err
}

// MarkSeasonFetched records that one season detail fetch completed.
func (w *Writer) MarkSeasonFetched(ctx context.Context, seriesID, season int64) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO season_fetch_done(series_id,season_number,done_at) VALUES(?,?,?)
		ON CONFLICT(series_id,season_number) DO UPDATE SET done_at=excluded.done_at`,
		seriesID, season, time.Now().Unix())
	return err
}

// Missing flags which parts of a title the catalog lacks for a locale.
type Missing struct {
	NeedBase         bool
	NeedLogos        bool
	NeedTranslations bool
	NeedCast         bool
	NeedVideos       bool
	NeedTV           bool // seasons or episodes absent
}

// Any reports whether anything at all is missing.
func (m Missing) Any() bool {
	return m.NeedBase || m.NeedLogos || m.NeedTranslations || m.NeedCast || m.NeedVideos || m.NeedTV
}

// MissingParts probes on the reader snapshot; used on the request path to
// decide whether to schedule a backfill.
func (r *Reader) MissingParts(ctx context.Context, mt MediaType, id int64, lang, region string, full bool) (Missing, error) {
	return missingParts(ctx, r.conn, mt, id, lang, region, full)
}

// MissingParts re-probes inside the backfill transaction so a task that lost
// the race to another writer does nothing.
func (w *Writer) MissingParts(ctx context.Context, mt MediaType, id int64, lang, region string, full bool) (Missing, error) {
	return missingParts(ctx, w.tx, mt, id, lang, region, full)
}

func missingParts(ctx context.Context, q dbtx, mt MediaType, id int64, lang, region string, full bool) (Missing, error) {
	var m Missing

	table := "movies"
	if mt == TV {
		table = "series"
	}
	var logos sql.NullString
	err := q.QueryRowContext(ctx, `SELECT logos_json FROM `+table+` WHERE id=? LIMIT 1`, id).Scan(&logos)
	switch {
	case err == sql.ErrNoRows:
		m.NeedBase = true
		m.NeedLogos = true
	case err != nil:
		return m, err
	default:
		m.NeedLogos = !logos.Valid || logos.String == ""
	}

	exists := func(query string, args ...any) (bool, error) {
		var one int
		err := q.QueryRowContext(ctx, query, args...).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	var ok bool
	if region != "" {
		ok, err = exists(`SELECT 1 FROM title_translations WHERE media_type=? AND tmdb_id=? AND iso_639_1=? AND iso_3166_1=? LIMIT 1`,
			string(mt), id, lang, region)
	} else {
		ok, err = exists(`SELECT 1 FROM title_translations WHERE media_type=? AND tmdb_id=? AND iso_639_1=? LIMIT 1`,
			string(mt), id, lang)
	}
	if err != nil {
		return m, err
	}
	m.NeedTranslations = !ok

	if !full {
		return m, nil
	}

	if ok, err = exists(`SELECT 1 FROM title_cast WHERE media_type=? AND tmdb_id=? LIMIT 1`, string(mt), id); err != nil {
		return m, err
	}
	m.NeedCast = !ok
	if ok, err = exists(`SELECT 1 FROM title_videos WHERE media_type=? AND tmdb_id=? LIMIT 1`, string(mt), id); err != nil {
		return m, err
	}
	m.NeedVideos = !ok

	if mt == TV {
		hasSeasons, err := exists(`SELECT 1 FROM tv_seasons WHERE series_id=? LIMIT 1`, id)
		if err != nil {
			return m, err
		}
		hasEpisodes, err := exists(`SELECT 1 FROM tv_episodes WHERE series_id=? LIMIT 1`, id)
		if err != nil {
			return m, err
		}
		m.NeedTV = !hasSeasons || !hasEpisodes
	}
	return m, nil
}
