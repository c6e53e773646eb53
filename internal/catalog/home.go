// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/respcache"
	"github.com/filmgrid/catalogd/internal/store"
)

type topRated struct {
	Movies []Card `json:"movies"`
	Series []Card `json:"series"`
}

type homePayload struct {
	AsOf          int64             `json:"as_of"`
	Providers     []string          `json:"providers"`
	Slider        []Card            `json:"slider"`
	Top10Today    []Card            `json:"top10_today"`
	TrendingToday []Card            `json:"trending_today"`
	SeriesOn      map[string][]Card `json:"series_on"`
	TopRated      topRated          `json:"top_rated"`
	Genres        map[string][]Card `json:"genres"`
}

// Home returns the precompressed home payload for the locale. Concurrent
// cold-cache requests for the same locale share one compose.
func (s *Service) Home(ctx context.Context, loc locale.Locale) (respcache.HomeEntry, error) {
	tag := loc.Tag()
	if cached, ok := s.homeCache.Get(tag); ok {
		return cached.enc, nil
	}

	v, err, _ := s.homeGroup.Do(tag, func() (any, error) {
		if cached, ok := s.homeCache.Get(tag); ok {
			return cached, nil
		}
		payload, err := s.composeHome(ctx, loc)
		if err != nil {
			return homeCached{}, err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return homeCached{}, err
		}
		entry := homeCached{payload: payload, enc: respcache.NewHomeEntry(raw, s.brotliQuality)}
		s.homeCache.Put(tag, entry)
		return entry, nil
	})
	if err != nil {
		return respcache.HomeEntry{}, err
	}
	return v.(homeCached).enc, nil
}

// homePayloadFor exposes the assembled object for the search landing page.
func (s *Service) homePayloadFor(ctx context.Context, loc locale.Locale) (*homePayload, error) {
	tag := loc.Tag()
	if cached, ok := s.homeCache.Get(tag); ok {
		return cached.payload, nil
	}
	if _, err := s.Home(ctx, loc); err != nil {
		return nil, err
	}
	cached, ok := s.homeCache.Get(tag)
	if !ok {
		return nil, nil
	}
	return cached.payload, nil
}

func (s *Service) composeHome(ctx context.Context, loc locale.Locale) (*homePayload, error) {
	r, err := s.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := &homePayload{
		AsOf:          time.Now().Unix(),
		Providers:     Providers,
		Slider:        []Card{},
		Top10Today:    []Card{},
		TrendingToday: []Card{},
		SeriesOn:      make(map[string][]Card, len(Providers)),
		Genres:        make(map[string][]Card, len(homeGenres)),
	}

	if s.client.Enabled() {
		s.composeTrendShelves(ctx, r, p, loc)
	} else {
		s.composeLocalShelves(ctx, r, p, loc)
	}

	for _, provider := range Providers {
		rows, err := r.SeriesOnNetworks(ctx, providerNeedles[provider], 18)
		if err != nil {
			return nil, err
		}
		cards := make([]Card, 0, len(rows))
		for _, row := range rows {
			cards = append(cards, cardFromRow(ctx, r, row, loc, false))
		}
		p.SeriesOn[provider] = cards
	}

	movieRows, err := r.TopRatedMovies(ctx)
	if err != nil {
		return nil, err
	}
	seriesRows, err := r.TopRatedSeries(ctx)
	if err != nil {
		return nil, err
	}
	p.TopRated.Movies = make([]Card, 0, len(movieRows))
	for _, row := range movieRows {
		p.TopRated.Movies = append(p.TopRated.Movies, cardFromRow(ctx, r, row, loc, false))
	}
	p.TopRated.Series = make([]Card, 0, len(seriesRows))
	for _, row := range seriesRows {
		p.TopRated.Series = append(p.TopRated.Series, cardFromRow(ctx, r, row, loc, false))
	}

	for shelf, names := range homeGenres {
		cards, err := s.genreCards(ctx, r, names, 18, 0, loc)
		if err != nil {
			return nil, err
		}
		p.Genres[shelf] = cards
	}
	return p, nil
}

// composeTrendShelves fills slider, top10 and trending from the provider.
// Slider and top10 are independent random samples of the day window, so a
// title can appear in both; the client deduplicates visually.
func (s *Service) composeTrendShelves(ctx context.Context, r *store.Reader, p *homePayload, loc locale.Locale) {
	day := s.trending(ctx, "day", loc)
	if len(day) > 0 {
		for _, idx := range samplePerm(len(day), 10) {
			card := providerCard(day[idx], kindOfListItem(day[idx]))
			card.Description = truncate(deref(day[idx].Overview))
			s.enrich(ctx, r, &card, loc)
			p.Slider = append(p.Slider, card)
		}
		for _, idx := range samplePerm(len(day), 10) {
			card := providerCard(day[idx], kindOfListItem(day[idx]))
			card.Description = truncate(deref(day[idx].Overview))
			s.enrich(ctx, r, &card, loc)
			p.Top10Today = append(p.Top10Today, card)
		}
	}
	for _, it := range s.trending(ctx, "week", loc) {
		card := providerCard(it, kindOfListItem(it))
		card.Description = truncate(deref(it.Overview))
		s.enrich(ctx, r, &card, loc)
		p.TrendingToday = append(p.TrendingToday, card)
	}

	// Provider hiccups degrade to the local popularity order.
	if len(p.Top10Today) == 0 {
		p.Top10Today = s.popularCards(ctx, r, loc, 10, false)
	}
	if len(p.TrendingToday) == 0 {
		p.TrendingToday = s.popularCards(ctx, r, loc, 30, false)
	}
}

// composeLocalShelves serves the keyless deployment entirely from the
// catalog.
func (s *Service) composeLocalShelves(ctx context.Context, r *store.Reader, p *homePayload, loc locale.Locale) {
	p.Slider = s.popularCards(ctx, r, loc, 10, true)
	p.Top10Today = s.popularCards(ctx, r, loc, 10, false)
	p.TrendingToday = s.popularCards(ctx, r, loc, 30, false)
}

// popularCards concatenates the most popular movies and series, movies
// first, clipped to limit.
func (s *Service) popularCards(ctx context.Context, r *store.Reader, loc locale.Locale, limit int, withDescription bool) []Card {
	cards := make([]Card, 0, limit)
	movies, err := r.TopMovies(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("home popular movies query failed")
		movies = nil
	}
	for _, row := range movies {
		cards = append(cards, cardFromRow(ctx, r, row, loc, withDescription))
	}
	series, err := r.TopSeries(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("home popular series query failed")
		series = nil
	}
	for _, row := range series {
		cards = append(cards, cardFromRow(ctx, r, row, loc, withDescription))
	}
	if len(cards) > limit {
		cards = cards[:limit]
	}
	return cards
}

// genreCards serves one genre shelf or browse page, through the normalized
// tables when ingestion provides them and the label column otherwise.
func (s *Service) genreCards(ctx context.Context, r *store.Reader, names []string, limit, offset int, loc locale.Locale) ([]Card, error) {
	var rows []store.TitleRow
	var err error
	if r.Caps().GenreEdges {
		rows, err = r.BrowseGenreEdges(ctx, names, limit, offset)
	} else {
		rows, err = r.BrowseGenreLike(ctx, names, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, cardFromRow(ctx, r, row, loc, false))
	}
	return cards, nil
}

// samplePerm returns up to k distinct indices of [0,n) in random order.
func samplePerm(n, k int) []int {
	if k > n {
		k = n
	}
	return rand.Perm(n)[:k]
}
