// SPDX-License-Identifier: MIT

package backfill

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/filmgrid/catalogd/internal/metrics"
	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

// runTask refreshes every missing part of one title in a single
// transaction. A provider failure abandons the remainder; the recent mark
// set at submission keeps the key quiet for the TTL either way.
func (s *Scheduler) runTask(t task) {
	defer s.done(t.key)

	ctx := context.Background()
	k := t.key
	log := s.log.With().
		Str("media_type", string(k.mt)).
		Int64("id", k.id).
		Str("lang", k.tag).
		Bool("full", k.full).
		Logger()

	w, err := s.store.Writer(ctx)
	if err != nil {
		log.Error().Err(err).Msg("backfill begin failed")
		metrics.BackfillTasks.WithLabelValues("error").Inc()
		return
	}
	committed := false
	defer func() {
		if !committed {
			w.Rollback()
		}
	}()

	// Re-probe inside the transaction; another worker or an ingestion run
	// may have filled the gap since submission.
	miss, err := w.MissingParts(ctx, k.mt, k.id, t.lang, t.region, k.full)
	if err != nil {
		log.Error().Err(err).Msg("backfill probe failed")
		metrics.BackfillTasks.WithLabelValues("error").Inc()
		return
	}
	if !miss.Any() {
		metrics.BackfillTasks.WithLabelValues("noop").Inc()
		return
	}

	if miss.NeedBase || (k.mt == store.TV && miss.NeedTV) {
		timeout := 8 * time.Second
		if k.full {
			timeout = 10 * time.Second
		}
		status, detail := s.client.Title(ctx, tmdb.Background, string(k.mt), k.id, k.tag, timeout)
		if status != http.StatusOK || detail == nil {
			metrics.BackfillTasks.WithLabelValues("provider_miss").Inc()
			return
		}
		if err := upsertBase(ctx, w, k.mt, k.id, detail); err != nil {
			log.Error().Err(err).Msg("backfill base upsert failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
		if k.mt == store.TV && miss.NeedTV {
			if err := s.upsertSeasons(ctx, w, k.id, k.tag, detail); err != nil {
				log.Error().Err(err).Msg("backfill seasons upsert failed")
				metrics.BackfillTasks.WithLabelValues("error").Inc()
				return
			}
		}
	}
	if miss.NeedLogos {
		if err := s.upsertLogos(ctx, w, k.mt, k.id, k.tag); err != nil {
			log.Error().Err(err).Msg("backfill logos upsert failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
	}
	if miss.NeedVideos {
		if err := s.upsertVideo(ctx, w, k.mt, k.id, k.tag); err != nil {
			log.Error().Err(err).Msg("backfill video upsert failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
	}
	if miss.NeedCast {
		if err := s.upsertCast(ctx, w, k.mt, k.id); err != nil {
			log.Error().Err(err).Msg("backfill cast upsert failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
	}
	if miss.NeedTranslations {
		if err := s.upsertTranslations(ctx, w, k.mt, k.id); err != nil {
			log.Error().Err(err).Msg("backfill translations upsert failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
	}

	if k.full {
		if err := w.MarkBackfillDone(ctx, k.mt, k.id, "full"); err != nil {
			log.Error().Err(err).Msg("backfill marker failed")
			metrics.BackfillTasks.WithLabelValues("error").Inc()
			return
		}
	}
	if err := w.Commit(); err != nil {
		log.Error().Err(err).Msg("backfill commit failed")
		metrics.BackfillTasks.WithLabelValues("error").Inc()
		return
	}
	committed = true
	metrics.BackfillTasks.WithLabelValues("completed").Inc()
	log.Debug().Msg("backfill task completed")
}

func upsertBase(ctx context.Context, w *store.Writer, mt store.MediaType, id int64, d *tmdb.Title) error {
	if mt == store.Movie {
		return w.UpsertMovie(ctx, store.MovieUpsert{
			ID:           id,
			Title:        norm(d.Title),
			Overview:     norm(d.Overview),
			VoteAverage:  d.VoteAverage,
			VoteCount:    d.VoteCount,
			ReleaseDate:  norm(d.ReleaseDate),
			Popularity:   d.Popularity,
			PosterPath:   norm(d.PosterPath),
			BackdropPath: norm(d.BackdropPath),
			Genres:       joinNames(d.Genres),
		})
	}
	return w.UpsertSeries(ctx, store.SeriesUpsert{
		ID:           id,
		Name:         norm(d.Name),
		Overview:     norm(d.Overview),
		VoteAverage:  d.VoteAverage,
		VoteCount:    d.VoteCount,
		FirstAirDate: norm(d.FirstAirDate),
		Popularity:   d.Popularity,
		PosterPath:   norm(d.PosterPath),
		BackdropPath: norm(d.BackdropPath),
		Genres:       joinNames(d.Genres),
		Networks:     joinNames(d.Networks),
		Seasons:      d.SeasonCount,
		Episodes:     d.EpisodeCount,
	})
}

// upsertSeasons stores the positive-numbered seasons from the detail
// payload, then fetches the episode list of the lowest one.
func (s *Scheduler) upsertSeasons(ctx context.Context, w *store.Writer, seriesID int64, tag string, d *tmdb.Title) error {
	var firstSeason int64
	for _, season := range d.Seasons {
		if season.SeasonNumber <= 0 {
			continue
		}
		if firstSeason == 0 {
			firstSeason = season.SeasonNumber
		}
		err := w.UpsertSeason(ctx, seriesID, store.SeasonUpsert{
			Number:       season.SeasonNumber,
			SeasonID:     season.ID,
			Name:         norm(season.Name),
			Overview:     norm(season.Overview),
			AirDate:      norm(season.AirDate),
			PosterPath:   norm(season.PosterPath),
			EpisodeCount: season.EpisodeCount,
		})
		if err != nil {
			return err
		}
	}
	if firstSeason == 0 {
		return nil
	}

	status, sd := s.client.Season(ctx, tmdb.Background, seriesID, firstSeason, tag, 12*time.Second)
	if status != http.StatusOK || sd == nil {
		return nil
	}
	for _, ep := range sd.Episodes {
		if ep.EpisodeNumber <= 0 {
			continue
		}
		err := w.UpsertEpisode(ctx, seriesID, firstSeason, store.EpisodeUpsert{
			Number:      ep.EpisodeNumber,
			EpisodeID:   ep.ID,
			Name:        norm(ep.Name),
			Overview:    norm(ep.Overview),
			AirDate:     norm(ep.AirDate),
			Runtime:     ep.Runtime,
			StillPath:   norm(ep.StillPath),
			VoteAverage: ep.VoteAverage,
			VoteCount:   ep.VoteCount,
		})
		if err != nil {
			return err
		}
	}
	return w.MarkSeasonFetched(ctx, seriesID, firstSeason)
}

// upsertLogos asks for locale, English and language-neutral logos first and
// widens to every language when that yields nothing.
func (s *Scheduler) upsertLogos(ctx context.Context, w *store.Writer, mt store.MediaType, id int64, tag string) error {
	status, images := s.client.Images(ctx, tmdb.Background, string(mt), id, tag+",en,null", 10*time.Second)
	byLang := harvestLogos(status, images)
	if byLang == nil {
		status, images = s.client.Images(ctx, tmdb.Background, string(mt), id, "", 10*time.Second)
		byLang = harvestLogos(status, images)
	}
	if len(byLang) == 0 {
		return nil
	}
	j, err := json.Marshal(byLang)
	if err != nil {
		return err
	}
	return w.SetLogos(ctx, mt, id, string(j))
}

// harvestLogos keeps the first logo per language, keying language-less
// entries as "und".
func harvestLogos(status int, images *tmdb.Images) map[string]string {
	if status != http.StatusOK || images == nil {
		return nil
	}
	byLang := make(map[string]string)
	for _, logo := range images.Logos {
		if logo.FilePath == "" {
			continue
		}
		lang := "und"
		if logo.Lang != nil {
			if v := strings.TrimSpace(*logo.Lang); v != "" {
				lang = v
			}
		}
		if _, ok := byLang[lang]; !ok {
			byLang[lang] = logo.FilePath
		}
	}
	if len(byLang) == 0 {
		return nil
	}
	return byLang
}

// upsertVideo keeps only the first keyed result; the catalog stores a
// single trailer per title.
func (s *Scheduler) upsertVideo(ctx context.Context, w *store.Writer, mt store.MediaType, id int64, tag string) error {
	status, videos := s.client.Videos(ctx, tmdb.Background, string(mt), id, tag, 10*time.Second)
	if status != http.StatusOK || videos == nil {
		return nil
	}
	for _, v := range videos.Results {
		if v.Key == nil || *v.Key == "" {
			continue
		}
		return w.UpsertVideo(ctx, mt, id, store.VideoUpsert{
			VideoID:     norm(v.ID),
			Key:         v.Key,
			Site:        norm(v.Site),
			Name:        norm(v.Name),
			Type:        norm(v.Type),
			Official:    v.Official,
			PublishedAt: norm(v.PublishedAt),
			Lang:        norm(v.Lang),
			Region:      norm(v.Region),
			Size:        v.Size,
		})
	}
	return nil
}

func (s *Scheduler) upsertCast(ctx context.Context, w *store.Writer, mt store.MediaType, id int64) error {
	status, credits := s.client.Credits(ctx, tmdb.Background, string(mt), id, 10*time.Second)
	if status != http.StatusOK || credits == nil {
		return nil
	}
	cast := credits.Cast
	if len(cast) > 24 {
		cast = cast[:24]
	}
	rows := make([]store.CastUpsert, 0, len(cast))
	for _, c := range cast {
		if c.ID == 0 || c.CreditID == "" {
			continue
		}
		rows = append(rows, store.CastUpsert{
			PersonID: c.ID,
			CreditID: c.CreditID,
			CastID:   c.CastID,
			Name:     norm(c.Name),
			Role:     norm(c.Character),
			Order:    c.Order,
			Profile:  norm(c.ProfilePath),
		})
	}
	return w.ReplaceCast(ctx, mt, id, rows)
}

// upsertTranslations stores every variant that carries both ISO codes,
// not just the requested locale, so later locale switches hit the catalog.
func (s *Scheduler) upsertTranslations(ctx context.Context, w *store.Writer, mt store.MediaType, id int64) error {
	status, tr := s.client.Translations(ctx, tmdb.Background, string(mt), id, 12*time.Second)
	if status != http.StatusOK || tr == nil {
		return nil
	}
	for _, t := range tr.Translations {
		lang := strings.ToLower(strings.TrimSpace(t.Lang))
		region := strings.ToUpper(strings.TrimSpace(t.Region))
		if lang == "" || region == "" {
			continue
		}
		title := norm(t.Data.Title)
		if title == nil {
			title = norm(t.Data.Name)
		}
		err := w.UpsertTranslation(ctx, mt, id, store.TranslationUpsert{
			Lang:     lang,
			Region:   region,
			Title:    title,
			Overview: norm(t.Data.Overview),
			Tagline:  norm(t.Data.Tagline),
			Homepage: norm(t.Data.Homepage),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// norm maps empty strings to nil so upserts write NULL, matching the
// ingestion convention.
func norm(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}

func joinNames(refs []tmdb.NamedRef) *string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	s := strings.Join(names, ", ")
	return &s
}
