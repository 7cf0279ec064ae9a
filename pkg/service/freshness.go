package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/crypto"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/repository"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const defaultUpstreamTimeout = 10 * time.Second

type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceFallback Source = "fallback"
)

type Result struct {
	Widget  *model.Widget
	Filters model.Filters
	Posts   []model.Post
	Source  Source
}

// Freshness decides per request whether posts come from cache, from the content API or from fallback content.
type Freshness struct {
	widgets repository.WidgetRepository
	cache   storage.Storage
	limiter rate.Limiter
	content repository.ContentSource
	codec   crypto.TokenCodec
	meter   metrics.Meter

	timeout time.Duration
	group   *singleflight.Group // nil unless misses are coalesced
}

func NewFreshness(
	cfg config.Upstream,
	widgets repository.WidgetRepository,
	cache storage.Storage,
	limiter rate.Limiter,
	content repository.ContentSource,
	codec crypto.TokenCodec,
	meter metrics.Meter,
) *Freshness {
	f := &Freshness{
		widgets: widgets,
		cache:   cache,
		limiter: limiter,
		content: content,
		codec:   codec,
		meter:   meter,
		timeout: cfg.UpstreamTimeout,
	}
	if f.timeout <= 0 {
		f.timeout = defaultUpstreamTimeout
	}
	if cfg.CoalesceUpstream {
		f.group = &singleflight.Group{}
	}
	return f
}

// Posts resolves the widget by slug and returns its posts for the given filters.
// Unset filters take the widget defaults. Every failure past the widget lookup degrades to fallback content.
func (s *Freshness) Posts(ctx context.Context, slug string, filters model.Filters) (*Result, error) {
	widget, err := s.widgets.GetBySlug(ctx, slug)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("[freshness] widget lookup failed")
		return nil, fmt.Errorf("lookup widget %q: %w", slug, err)
	}
	if widget == nil || !widget.IsActive {
		return nil, ErrNotFound
	}

	filters = filters.WithDefaults(widget.Settings.PlatformFilter, widget.Settings.StatusFilter)
	result := &Result{Widget: widget, Filters: filters}

	if posts, found := s.cache.Get(ctx, widget.ID, filters); found {
		result.Posts, result.Source = posts, SourceCache
		return result, nil
	}

	if s.group == nil {
		result.Posts, result.Source = s.fetch(ctx, widget, filters)
		return result, nil
	}

	v, _, _ := s.group.Do(model.CacheKey(widget.ID, filters), func() (any, error) {
		posts, source := s.fetch(ctx, widget, filters)
		return fetched{posts: posts, source: source}, nil
	})
	res := v.(fetched)
	result.Posts, result.Source = res.posts, res.source
	return result, nil
}

type fetched struct {
	posts  []model.Post
	source Source
}

// fetch passes the rate gate, calls the content API and caches whatever is served, fallback included.
func (s *Freshness) fetch(ctx context.Context, widget *model.Widget, filters model.Filters) ([]model.Post, Source) {
	posts, err := s.fetchUpstream(ctx, widget, filters)
	source := SourceUpstream
	if err != nil {
		reason := reasonOf(err)
		s.meter.IncFallback(reason)
		log.Warn().
			Err(err).
			Str("widget", widget.ID).
			Str("reason", reason).
			Msg("[freshness] serving fallback content")
		posts, source = model.FallbackPosts(), SourceFallback
	}

	// the request may be gone already, the entry must still be written
	s.cache.Set(context.WithoutCancel(ctx), widget.ID, posts, filters)
	return posts, source
}

func (s *Freshness) fetchUpstream(ctx context.Context, widget *model.Widget, filters model.Filters) ([]model.Post, error) {
	if err := s.limiter.WaitForNextAvailable(ctx, rate.DefaultIdentifier); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRateExceeded, err)
	}
	if !s.limiter.CanMakeRequest(rate.DefaultIdentifier) {
		s.meter.IncUpstreamCall("denied")
		return nil, ErrRateExceeded
	}

	token, err := s.codec.Decrypt(widget.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredential, err)
	}

	s.limiter.RecordRequest(rate.DefaultIdentifier)

	upstreamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	posts, err := s.content.QueryDatabase(upstreamCtx, token, widget.DatabaseID, filters)
	if err != nil {
		s.meter.IncUpstreamCall("error")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	s.meter.IncUpstreamCall("ok")

	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}
