// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

// Trailer points at a playable clip.
type Trailer struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SeasonInfo is one row of the title page season list.
type SeasonInfo struct {
	Season       int64 `json:"season"`
	EpisodeCount int64 `json:"episode_count"`
}

// EpisodeInfo is one prefetched episode.
type EpisodeInfo struct {
	Episode    int64   `json:"episode"`
	Name       string  `json:"name"`
	RuntimeMin *int64  `json:"runtime_min"`
	Still      *string `json:"still"`
}

// CastEntry is one billed cast member on the title page.
type CastEntry struct {
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Order   int64   `json:"order"`
	Profile *string `json:"profile"`
}

// TitlePage is the detail payload. Description is the full localized text,
// unlike the clipped card description.
type TitlePage struct {
	ID               int64         `json:"id"`
	Kind             string        `json:"kind"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Tags             []string      `json:"tags"`
	Year             *int          `json:"year"`
	RuntimeMin       *int64        `json:"runtime_min"`
	Rating           *float64      `json:"rating"`
	Poster           *string       `json:"poster"`
	Logo             *string       `json:"logo"`
	Backdrop         *string       `json:"backdrop"`
	TrailerYoutube   *Trailer      `json:"trailer_youtube"`
	Seasons          []SeasonInfo  `json:"seasons"`
	PrefetchSeason   *int64        `json:"prefetch_season"`
	PrefetchEpisodes []EpisodeInfo `json:"prefetch_episodes"`
	Cast             []CastEntry   `json:"cast"`
	Similar          []Card        `json:"similar"`
}

// Title builds the detail page. Unknown IDs are probed against the
// provider once; a hit is persisted and served immediately, a miss returns
// (nil, nil).
func (s *Service) Title(ctx context.Context, id int64, loc locale.Locale) (*TitlePage, error) {
	r, err := s.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	row, err := r.MovieByID(ctx, id)
	if err != nil {
		return nil, err
	}
	mt := store.Movie
	if row == nil {
		row, err = r.SeriesByID(ctx, id)
		if err != nil {
			return nil, err
		}
		mt = store.TV
	}
	if row == nil {
		row, mt = s.probeUnknownTitle(ctx, r, id, loc)
		if row == nil {
			return nil, nil
		}
	}

	if miss, err := r.MissingParts(ctx, mt, id, loc.Lang, loc.Region, true); err == nil && miss.Any() {
		s.backfill.Submit(mt, id, loc.Lang, loc.Region, true)
	}

	tTitle, tOver, err := r.Translated(ctx, mt, id, loc.Lang, loc.Region)
	if err != nil {
		tTitle, tOver = nil, nil
	}
	name := strings.TrimSpace(deref(tTitle))
	if name == "" {
		name = strings.TrimSpace(deref(row.Name))
	}
	description := strings.TrimSpace(deref(tOver))
	if description == "" {
		description = strings.TrimSpace(deref(row.Overview))
	}

	page := &TitlePage{
		ID:               id,
		Kind:             row.Kind,
		Name:             name,
		Description:      description,
		Tags:             splitTags(deref(row.Genres)),
		Year:             year(row.Date),
		Rating:           row.Rating,
		Poster:           row.Poster,
		Logo:             pickLogo(row.LogosJSON, loc.Lang),
		Backdrop:         row.Backdrop,
		Seasons:          []SeasonInfo{},
		PrefetchEpisodes: []EpisodeInfo{},
		Cast:             []CastEntry{},
		Similar:          []Card{},
	}

	if v, err := r.Trailer(ctx, mt, id); err == nil && v != nil {
		if strings.EqualFold(deref(v.Site), "youtube") && deref(v.Key) != "" {
			key := *v.Key
			page.TrailerYoutube = &Trailer{Key: key, URL: "https://www.youtube.com/watch?v=" + key}
		}
	}

	if row.Kind == "series" {
		if err := s.fillSeries(ctx, r, page, id); err != nil {
			return nil, err
		}
	}

	cast, err := r.Cast(ctx, mt, id, 24)
	if err != nil {
		return nil, err
	}
	for _, c := range cast {
		page.Cast = append(page.Cast, CastEntry{
			Name:    strings.TrimSpace(deref(c.Name)),
			Role:    strings.TrimSpace(deref(c.Role)),
			Order:   c.Order,
			Profile: c.Profile,
		})
	}

	page.Similar = s.Similar(ctx, row.Kind, id, loc)
	return page, nil
}

// probeUnknownTitle asks the provider which side of the catalog an unknown
// ID belongs to and persists the base row on a hit so the next request is
// local.
func (s *Service) probeUnknownTitle(ctx context.Context, r *store.Reader, id int64, loc locale.Locale) (*store.TitleRow, store.MediaType) {
	mediaType, status, detail := s.client.TitleAny(ctx, id, loc.Tag(), 8*time.Second)
	if status != http.StatusOK || detail == nil {
		return nil, ""
	}
	mt := store.MediaType(mediaType)

	w, err := s.store.Writer(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("title probe persist begin failed")
		return nil, ""
	}
	if err := upsertProbedTitle(ctx, w, mt, id, detail); err != nil {
		w.Rollback()
		s.log.Error().Err(err).Int64("id", id).Msg("title probe persist failed")
		return nil, ""
	}
	if err := w.Commit(); err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("title probe commit failed")
		return nil, ""
	}

	var row *store.TitleRow
	if mt == store.Movie {
		row, err = r.MovieByID(ctx, id)
	} else {
		row, err = r.SeriesByID(ctx, id)
	}
	if err != nil || row == nil {
		return nil, ""
	}
	return row, mt
}

func (s *Service) fillSeries(ctx context.Context, r *store.Reader, page *TitlePage, id int64) error {
	seasons, err := r.Seasons(ctx, id)
	if err != nil {
		return err
	}
	var prefetch int64
	for _, season := range seasons {
		page.Seasons = append(page.Seasons, SeasonInfo{Season: season.Number, EpisodeCount: season.EpisodeCount})
		if prefetch == 0 && season.Number > 0 {
			prefetch = season.Number
		}
	}
	if prefetch == 0 {
		prefetch, err = r.MinPositiveSeason(ctx, id)
		if err != nil {
			return err
		}
	}
	if prefetch == 0 {
		return nil
	}

	episodes, err := r.Episodes(ctx, id, prefetch)
	if err != nil {
		return err
	}
	page.PrefetchSeason = &prefetch
	for _, ep := range episodes {
		page.PrefetchEpisodes = append(page.PrefetchEpisodes, EpisodeInfo{
			Episode:    ep.Number,
			Name:       strings.TrimSpace(deref(ep.Name)),
			RuntimeMin: ep.Runtime,
			Still:      ep.Still,
		})
	}
	return nil
}

// Similar returns related titles, provider-sourced and locale-cached.
func (s *Service) Similar(ctx context.Context, kind string, id int64, loc locale.Locale) []Card {
	if !s.client.Enabled() {
		return []Card{}
	}
	k := similarKey{kind: kind, id: id, tag: loc.Tag()}
	if cards, ok := s.similarCache.Get(k); ok {
		return cards
	}

	mt := mediaTypeOf(kind)
	_, items := s.client.Similar(ctx, tmdb.Foreground, string(mt), id, loc.Lang, 6*time.Second)
	if len(items) > 24 {
		items = items[:24]
	}
	cards := make([]Card, 0, len(items))
	if len(items) > 0 {
		r, err := s.store.Reader(ctx)
		if err == nil {
			defer r.Close()
			for _, it := range items {
				if it.ID <= 0 {
					continue
				}
				card := providerCard(it, kind)
				s.enrich(ctx, r, &card, loc)
				cards = append(cards, card)
			}
		}
	}
	s.similarCache.Put(k, cards)
	return cards
}

func splitTags(genres string) []string {
	tags := []string{}
	for _, t := range strings.Split(genres, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// upsertProbedTitle persists the base payload of a successful kind probe.
func upsertProbedTitle(ctx context.Context, w *store.Writer, mt store.MediaType, id int64, d *tmdb.Title) error {
	if mt == store.Movie {
		return w.UpsertMovie(ctx, store.MovieUpsert{
			ID:           id,
			Title:        d.Title,
			Overview:     d.Overview,
			VoteAverage:  d.VoteAverage,
			VoteCount:    d.VoteCount,
			ReleaseDate:  d.ReleaseDate,
			Popularity:   d.Popularity,
			PosterPath:   d.PosterPath,
			BackdropPath: d.BackdropPath,
			Genres:       joinGenreNames(d.Genres),
		})
	}
	return w.UpsertSeries(ctx, store.SeriesUpsert{
		ID:           id,
		Name:         d.Name,
		Overview:     d.Overview,
		VoteAverage:  d.VoteAverage,
		VoteCount:    d.VoteCount,
		FirstAirDate: d.FirstAirDate,
		Popularity:   d.Popularity,
		PosterPath:   d.PosterPath,
		BackdropPath: d.BackdropPath,
		Genres:       joinGenreNames(d.Genres),
		Networks:     joinGenreNames(d.Networks),
		Seasons:      d.SeasonCount,
		Episodes:     d.EpisodeCount,
	})
}

func joinGenreNames(refs []tmdb.NamedRef) *string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Name != "" {
			names = append(names, ref.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	s := strings.Join(names, ", ")
	return &s
}
