// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/store"
)

// Card is the compact tile every list endpoint returns. Description is
// present only on shelves that show one.
type Card struct {
	ID          int64    `json:"id"`
	Kind        string   `json:"kind"` // "movie" or "series"
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Year        *int     `json:"year"`
	Rating      *float64 `json:"rating"`
	Poster      *string  `json:"poster"`
	Logo        *string  `json:"logo"`
	Backdrop    *string  `json:"backdrop"`
}

func mediaTypeOf(kind string) store.MediaType {
	if kind == "movie" {
		return store.Movie
	}
	return store.TV
}

// year extracts the leading four-digit year of a date string, nil when the
// value is absent or malformed.
func year(date *string) *int {
	if date == nil || len(*date) < 4 {
		return nil
	}
	n, err := strconv.Atoi((*date)[:4])
	if err != nil {
		return nil
	}
	return &n
}

const descriptionLimit = 240

// truncate clips a description to the card limit, counting characters, and
// appends an ellipsis. Empty input yields nil.
func truncate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	runes := []rune(s)
	if len(runes) > descriptionLimit {
		s = string(runes[:descriptionLimit]) + "…"
	}
	return &s
}

// pickLogo chooses a logo path from the stored per-language JSON map:
// requested language, then English, then language-neutral, then anything.
func pickLogo(logosJSON *string, lang string) *string {
	if logosJSON == nil {
		return nil
	}
	var byLang map[string]string
	if err := json.Unmarshal([]byte(*logosJSON), &byLang); err != nil {
		return nil
	}
	for _, k := range []string{lang, "en", "und"} {
		if v := byLang[k]; v != "" {
			return &v
		}
	}
	// Deterministic "anything" fallback.
	keys := make([]string, 0, len(byLang))
	for k := range byLang {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := byLang[k]; v != "" {
			return &v
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// cardFromRow builds a card from a full movies/series row, preferring the
// localized title and, when asked for, a clipped localized description.
func cardFromRow(ctx context.Context, r *store.Reader, row store.TitleRow, loc locale.Locale, withDescription bool) Card {
	mt := mediaTypeOf(row.Kind)
	tTitle, tOver, err := r.Translated(ctx, mt, row.ID, loc.Lang, loc.Region)
	if err != nil {
		tTitle, tOver = nil, nil
	}

	name := strings.TrimSpace(deref(tTitle))
	if name == "" {
		name = strings.TrimSpace(deref(row.Name))
	}
	var description *string
	if withDescription {
		s := deref(tOver)
		if strings.TrimSpace(s) == "" {
			s = deref(row.Overview)
		}
		description = truncate(s)
	}
	logo := pickLogo(row.LogosJSON, loc.Lang)
	if logo == nil {
		logo = row.Poster
	}
	return Card{
		ID:          row.ID,
		Kind:        row.Kind,
		Name:        name,
		Description: description,
		Year:        year(row.Date),
		Rating:      row.Rating,
		Poster:      row.Poster,
		Logo:        logo,
		Backdrop:    row.Backdrop,
	}
}
