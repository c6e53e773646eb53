// SPDX-License-Identifier: MIT

package catalog

import (
	"context"

	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/store"
)

// BrowsePage is one page of a browse tab.
type BrowsePage struct {
	Tab      string `json:"tab"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	HasMore  bool   `json:"has_more"`
	Items    []Card `json:"items"`
}

// Browse pages through a tab. One extra row is fetched to decide has_more
// without a count query. Unknown tabs and pages below one return nil.
func (s *Service) Browse(ctx context.Context, tab string, page int, loc locale.Locale) (*BrowsePage, error) {
	if page < 1 {
		return nil, nil
	}
	spec, ok := browseTabs[tab]
	if !ok {
		return nil, nil
	}

	r, err := s.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	limit := pageSize + 1
	offset := (page - 1) * pageSize

	var rows []store.TitleRow
	if spec.mode == "genre" {
		names := genreNeedles(spec.genre)
		if r.Caps().GenreEdges {
			rows, err = r.BrowseGenreEdges(ctx, names, limit, offset)
		} else {
			rows, err = r.BrowseGenreLike(ctx, names, limit, offset)
		}
	} else {
		rows, err = r.Browse(ctx, spec.mode, limit, offset)
	}
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}
	items := make([]Card, 0, len(rows))
	for _, row := range rows {
		items = append(items, cardFromRow(ctx, r, row, loc, false))
	}
	return &BrowsePage{
		Tab:      tab,
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
		Items:    items,
	}, nil
}
