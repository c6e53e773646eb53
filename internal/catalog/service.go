// SPDX-License-Identifier: MIT

// Package catalog assembles API payloads from the store, repairing gaps
// through the backfill scheduler and filling the trend-driven shelves from
// the provider.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/filmgrid/catalogd/internal/backfill"
	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/respcache"
	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

const (
	pageSize    = 48
	homeTTL     = 90 * time.Minute
	trendingTTL = 90 * time.Minute
	similarTTL  = 3 * 24 * time.Hour
)

type trendKey struct {
	window string
	tag    string
}

type similarKey struct {
	kind string
	id   int64
	tag  string
}

type homeCached struct {
	payload *homePayload
	enc     respcache.HomeEntry
}

// Service is the read-path assembler. Safe for concurrent use.
type Service struct {
	store    *store.Store
	client   *tmdb.Client
	backfill *backfill.Scheduler
	log      zerolog.Logger

	brotliQuality int

	homeCache     *respcache.Cache[string, homeCached]
	trendingCache *respcache.Cache[trendKey, []tmdb.ListItem]
	similarCache  *respcache.Cache[similarKey, []Card]
	homeGroup     singleflight.Group
}

// New wires the assembler. brotliQuality tunes the precompressed home
// bodies.
func New(st *store.Store, client *tmdb.Client, sched *backfill.Scheduler, brotliQuality int, log zerolog.Logger) *Service {
	return &Service{
		store:         st,
		client:        client,
		backfill:      sched,
		log:           log,
		brotliQuality: brotliQuality,
		homeCache:     respcache.New[string, homeCached]("home", homeTTL),
		trendingCache: respcache.New[trendKey, []tmdb.ListItem]("trending", trendingTTL),
		similarCache:  respcache.New[similarKey, []Card]("similar", similarTTL),
	}
}

// trending returns the provider's mixed trending list for "day" or "week",
// filtered to usable movie/tv entries and cached per window and locale.
func (s *Service) trending(ctx context.Context, window string, loc locale.Locale) []tmdb.ListItem {
	if !s.client.Enabled() {
		return nil
	}
	k := trendKey{window: window, tag: loc.Tag()}
	if items, ok := s.trendingCache.Get(k); ok {
		return items
	}
	_, raw := s.client.Trending(ctx, tmdb.Foreground, window, loc.Tag(), 6*time.Second)
	items := make([]tmdb.ListItem, 0, len(raw))
	for _, it := range raw {
		mt := strings.ToLower(it.MediaType)
		if (mt != "movie" && mt != "tv") || it.ID <= 0 {
			continue
		}
		items = append(items, it)
	}
	s.trendingCache.Put(k, items)
	return items
}

// providerCard converts a trending/similar list entry to a card. The
// provider ships no logos in list payloads, so the poster stands in until
// enrichment finds one in the catalog.
func providerCard(it tmdb.ListItem, kind string) Card {
	name := deref(it.Title)
	if name == "" {
		name = deref(it.Name)
	}
	date := it.ReleaseDate
	if date == nil {
		date = it.FirstAirDate
	}
	return Card{
		ID:       it.ID,
		Kind:     kind,
		Name:     strings.TrimSpace(name),
		Year:     year(date),
		Rating:   it.VoteAverage,
		Poster:   it.PosterPath,
		Logo:     it.PosterPath,
		Backdrop: it.BackdropPath,
	}
}

func kindOfListItem(it tmdb.ListItem) string {
	if strings.ToLower(it.MediaType) == "movie" {
		return "movie"
	}
	return "series"
}

// enrich upgrades a provider-built card with catalog data: localized name,
// description (when the card has none), stored logo and backdrop. Missing
// parts schedule a shallow backfill; the card is served as-is meanwhile.
func (s *Service) enrich(ctx context.Context, r *store.Reader, card *Card, loc locale.Locale) {
	if card.ID <= 0 || (card.Kind != "movie" && card.Kind != "series") {
		return
	}
	mt := mediaTypeOf(card.Kind)
	if miss, err := r.MissingParts(ctx, mt, card.ID, loc.Lang, loc.Region, false); err == nil && miss.Any() {
		s.backfill.Submit(mt, card.ID, loc.Lang, loc.Region, false)
	}

	var row *store.TitleRow
	var err error
	if mt == store.Movie {
		row, err = r.MovieByID(ctx, card.ID)
	} else {
		row, err = r.SeriesByID(ctx, card.ID)
	}
	if err == nil && row != nil {
		tTitle, tOver, terr := r.Translated(ctx, mt, card.ID, loc.Lang, loc.Region)
		if terr != nil {
			tTitle, tOver = nil, nil
		}
		name := strings.TrimSpace(deref(tTitle))
		if name == "" {
			name = strings.TrimSpace(deref(row.Name))
		}
		if name != "" {
			card.Name = name
		}
		if strings.TrimSpace(deref(card.Description)) == "" {
			text := deref(tOver)
			if strings.TrimSpace(text) == "" {
				text = deref(row.Overview)
			}
			card.Description = truncate(text)
		}
		if logo := pickLogo(row.LogosJSON, loc.Lang); logo != nil {
			card.Logo = logo
		}
		if card.Backdrop == nil {
			card.Backdrop = row.Backdrop
		}
	}
	if card.Logo == nil {
		card.Logo = card.Poster
	}
}
