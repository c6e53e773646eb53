// SPDX-License-Identifier: MIT

// Package tmdb is the provider client. All upstream calls flow through two
// token buckets sharing one request budget so background backfill can never
// starve request-driven fetches.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/filmgrid/catalogd/internal/metrics"
)

// Priority selects which token bucket a call draws from.
type Priority int

const (
	// Foreground is for request-driven fetches.
	Foreground Priority = iota
	// Background is for backfill workers.
	Background
)

func (p Priority) String() string {
	if p == Background {
		return "background"
	}
	return "foreground"
}

const maxAttempts = 6

// Options configures a Client.
type Options struct {
	BaseURL       string // e.g. https://api.themoviedb.org/3
	APIKey        string // empty disables the client entirely
	ProxyURL      string // optional outbound proxy
	ForegroundRPS float64
	BackgroundRPS float64
	Logger        zerolog.Logger
}

// Client talks TMDB-shaped JSON. Safe for concurrent use.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	fg      *rate.Limiter
	bg      *rate.Limiter // nil when the background share is zero
	log     zerolog.Logger
}

// New builds a Client. Bucket capacity is at least one token so a single
// call can always proceed even with a fractional rate.
func New(o Options) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.ProxyURL != "" {
		pu, err := url.Parse(o.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(pu)
	}

	c := &Client{
		baseURL: o.BaseURL,
		key:     o.APIKey,
		http:    &http.Client{Transport: transport},
		fg:      rate.NewLimiter(rate.Limit(o.ForegroundRPS), burst(o.ForegroundRPS)),
		log:     o.Logger,
	}
	if o.BackgroundRPS > 0 {
		c.bg = rate.NewLimiter(rate.Limit(o.BackgroundRPS), burst(o.BackgroundRPS))
	}
	return c, nil
}

func burst(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Enabled reports whether an API key is configured. Disabled clients return
// the (0, nil) sentinel from every call.
func (c *Client) Enabled() bool { return c.key != "" }

func (c *Client) limiter(p Priority) *rate.Limiter {
	if p == Background && c.bg != nil {
		return c.bg
	}
	return c.fg
}

// GetJSON fetches one URL with retry. On 429 it honors a numeric
// Retry-After header, defaulting to one second; 5xx and transport errors
// back off exponentially. Non-429 4xx returns immediately. The returned
// body is non-nil only for a 200 carrying a JSON object. Status 0 means no
// response was ever obtained.
func (c *Client) GetJSON(ctx context.Context, prio Priority, rawURL string, timeout time.Duration) (int, json.RawMessage) {
	if !c.Enabled() {
		return 0, nil
	}
	lastStatus := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter(prio).Wait(ctx); err != nil {
			return lastStatus, nil
		}
		status, body, retryAfter := c.attempt(ctx, rawURL, timeout)
		metrics.ProviderRequests.WithLabelValues(prio.String(), metrics.StatusClass(status)).Inc()
		if status != 0 {
			lastStatus = status
		}

		switch {
		case status == http.StatusOK:
			return status, body
		case status == http.StatusTooManyRequests:
			if !sleepCtx(ctx, retryAfter) {
				return lastStatus, nil
			}
		case status == 0 || status >= 500:
			backoff := (500 * time.Millisecond) << attempt
			if !sleepCtx(ctx, backoff) {
				return lastStatus, nil
			}
		default:
			// Permanent client error; retrying cannot help.
			return status, nil
		}
		metrics.ProviderRetries.Inc()
	}
	c.log.Debug().Str("url", redactKey(rawURL)).Int("status", lastStatus).Msg("provider request exhausted retries")
	return lastStatus, nil
}

// attempt performs a single HTTP round trip. retryAfter is only meaningful
// for a 429 response.
func (c *Client) attempt(ctx context.Context, rawURL string, timeout time.Duration) (int, json.RawMessage, time.Duration) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		after := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
				after = time.Duration(secs * float64(time.Second))
			}
		}
		return resp.StatusCode, nil, after
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil, 0
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0
	}
	// Payloads must be JSON objects; anything else is treated as absent.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return resp.StatusCode, nil, 0
	}
	return resp.StatusCode, body, 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("api_key", c.key)
	return c.baseURL + path + "?" + params.Encode()
}

// Title fetches the movie or tv detail payload.
func (c *Client) Title(ctx context.Context, prio Priority, mediaType string, id int64, langTag string, timeout time.Duration) (int, *Title) {
	u := c.endpoint(fmt.Sprintf("/%s/%d", mediaType, id), url.Values{"language": {langTag}})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var t Title
	if err := json.Unmarshal(body, &t); err != nil {
		return status, nil
	}
	return status, &t
}

// Images fetches the logo set. includeLangs narrows the language filter;
// empty requests everything.
func (c *Client) Images(ctx context.Context, prio Priority, mediaType string, id int64, includeLangs string, timeout time.Duration) (int, *Images) {
	params := url.Values{}
	if includeLangs != "" {
		params.Set("include_image_language", includeLangs)
	}
	u := c.endpoint(fmt.Sprintf("/%s/%d/images", mediaType, id), params)
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var im Images
	if err := json.Unmarshal(body, &im); err != nil {
		return status, nil
	}
	return status, &im
}

// Videos fetches the clip list for a title.
func (c *Client) Videos(ctx context.Context, prio Priority, mediaType string, id int64, langTag string, timeout time.Duration) (int, *Videos) {
	u := c.endpoint(fmt.Sprintf("/%s/%d/videos", mediaType, id), url.Values{"language": {langTag}})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var v Videos
	if err := json.Unmarshal(body, &v); err != nil {
		return status, nil
	}
	return status, &v
}

// Credits fetches the billed cast.
func (c *Client) Credits(ctx context.Context, prio Priority, mediaType string, id int64, timeout time.Duration) (int, *Credits) {
	u := c.endpoint(fmt.Sprintf("/%s/%d/credits", mediaType, id), url.Values{})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var cr Credits
	if err := json.Unmarshal(body, &cr); err != nil {
		return status, nil
	}
	return status, &cr
}

// Translations fetches all localized text variants.
func (c *Client) Translations(ctx context.Context, prio Priority, mediaType string, id int64, timeout time.Duration) (int, *Translations) {
	u := c.endpoint(fmt.Sprintf("/%s/%d/translations", mediaType, id), url.Values{})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var tr Translations
	if err := json.Unmarshal(body, &tr); err != nil {
		return status, nil
	}
	return status, &tr
}

// Season fetches one season's episode list.
func (c *Client) Season(ctx context.Context, prio Priority, seriesID, season int64, langTag string, timeout time.Duration) (int, *SeasonDetail) {
	u := c.endpoint(fmt.Sprintf("/tv/%d/season/%d", seriesID, season), url.Values{"language": {langTag}})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var sd SeasonDetail
	if err := json.Unmarshal(body, &sd); err != nil {
		return status, nil
	}
	return status, &sd
}

// Trending fetches the mixed movie/series trending list for a window of
// "day" or "week".
func (c *Client) Trending(ctx context.Context, prio Priority, window, langTag string, timeout time.Duration) (int, []ListItem) {
	if window != "day" && window != "week" {
		return 0, nil
	}
	u := c.endpoint("/trending/all/"+window, url.Values{"language": {langTag}})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var p listPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return status, nil
	}
	return status, p.Results
}

// Similar fetches titles related to the given one.
func (c *Client) Similar(ctx context.Context, prio Priority, mediaType string, id int64, lang string, timeout time.Duration) (int, []ListItem) {
	u := c.endpoint(fmt.Sprintf("/%s/%d/similar", mediaType, id), url.Values{"language": {lang}})
	status, body := c.GetJSON(ctx, prio, u, timeout)
	if body == nil {
		return status, nil
	}
	var p listPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return status, nil
	}
	return status, p.Results
}

// TitleAny probes the movie and tv endpoints concurrently for an ID whose
// kind is unknown. The first 200 with a payload wins and cancels the other
// probe; otherwise the slower result gets a chance before giving up.
func (c *Client) TitleAny(ctx context.Context, id int64, langTag string, timeout time.Duration) (string, int, *Title) {
	if !c.Enabled() {
		return "", 0, nil
	}
	type probe struct {
		mediaType string
		status    int
		title     *Title
	}
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan probe, 2)
	for _, mt := range []string{"movie", "tv"} {
		go func(mt string) {
			st, t := c.Title(pctx, Foreground, mt, id, langTag, timeout)
			ch <- probe{mediaType: mt, status: st, title: t}
		}(mt)
	}

	first := <-ch
	if first.status == http.StatusOK && first.title != nil {
		return first.mediaType, first.status, first.title
	}
	second := <-ch
	if second.status == http.StatusOK && second.title != nil {
		return second.mediaType, second.status, second.title
	}
	if first.status == http.StatusOK {
		return first.mediaType, first.status, first.title
	}
	return second.mediaType, second.status, second.title
}
