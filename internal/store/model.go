// SPDX-License-Identifier: MIT

package store

import "database/sql"

// TitleRow is one movie or series row projected into the shape the
// assembler consumes. Kind is "movie" or "series" (the card vocabulary,
// not the media_type vocabulary).
type TitleRow struct {
	ID        int64
	Kind      string
	Name      *string
	Overview  *string
	Date      *string // release_date or first_air_date
	Rating    *float64
	VoteCount *int64
	Pop       *float64
	Poster    *string
	Backdrop  *string
	LogosJSON *string
	Genres    *string
	Networks  *string
	Seasons   *int64
	Episodes  *int64
}

// SeasonRow is one tv_seasons row slimmed for the title page.
type SeasonRow struct {
	Number       int64
	EpisodeCount int64
}

// EpisodeRow is one tv_episodes row slimmed for the prefetch block.
type EpisodeRow struct {
	Number  int64
	Name    *string
	Runtime *int64
	Still   *string
}

// CastRow is one title_cast row slimmed for the title page.
type CastRow struct {
	Name    *string
	Role    *string
	Order   int64
	Profile *string
}

// VideoRow is the single title_videos row kept per title.
type VideoRow struct {
	Key  *string
	Site *string
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
