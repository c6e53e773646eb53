// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"strings"

	"github.com/filmgrid/catalogd/internal/locale"
)

// SearchResult is the payload of a search query.
type SearchResult struct {
	Query   string `json:"query"`
	Results []Card `json:"results"`
}

// SearchLanding backs the empty search page with the trending shelf.
type SearchLanding struct {
	TrendingToday []Card `json:"trending_today"`
	Query         string `json:"query"`
	Results       []Card `json:"results"`
}

// Search matches localized names and overviews by substring, most popular
// first. A blank query returns an empty result set without touching the
// store.
func (s *Service) Search(ctx context.Context, query string, loc locale.Locale) (*SearchResult, error) {
	q := strings.TrimSpace(query)
	out := &SearchResult{Query: q, Results: []Card{}}
	if q == "" {
		return out, nil
	}

	r, err := s.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rows, err := r.Search(ctx, loc.Lang, q, 12)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out.Results = append(out.Results, cardFromRow(ctx, r, row, loc, false))
	}
	return out, nil
}

// SearchLandingPage serves /v1/search without a query.
func (s *Service) SearchLandingPage(ctx context.Context, loc locale.Locale) (*SearchLanding, error) {
	landing := &SearchLanding{TrendingToday: []Card{}, Query: "", Results: []Card{}}
	payload, err := s.homePayloadFor(ctx, loc)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		landing.TrendingToday = payload.TrendingToday
	}
	return landing, nil
}
