package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/repository"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	postA = model.Post{ID: "a", Title: "A"}
	postB = model.Post{ID: "b", Title: "B"}
)

type fakeContent struct {
	calls   atomic.Int32
	filters []model.Filters
	mu      sync.Mutex
	query   func(ctx context.Context) ([]model.Post, error)
}

func (c *fakeContent) QueryDatabase(ctx context.Context, token, _ string, f model.Filters) ([]model.Post, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.filters = append(c.filters, f)
	c.mu.Unlock()
	if token != "plain-token" {
		return nil, errors.New("unexpected token " + token)
	}
	return c.query(ctx)
}

func (c *fakeContent) TestConnection(context.Context, string, string) error { return nil }

func (c *fakeContent) DetectColumns(context.Context, string, string) (model.Columns, error) {
	return model.Columns{}, nil
}

type fakeCodec struct{ err error }

func (c fakeCodec) Encrypt(token string) (string, error) { return token, c.err }

func (c fakeCodec) Decrypt(string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "plain-token", nil
}

// spyLimiter counts interactions with the wrapped limiter.
type spyLimiter struct {
	rate.Limiter
	deny    bool
	checks  atomic.Int32
	records atomic.Int32
	waits   atomic.Int32
}

func (l *spyLimiter) CanMakeRequest(id string) bool {
	l.checks.Add(1)
	if l.deny {
		return false
	}
	return l.Limiter.CanMakeRequest(id)
}

func (l *spyLimiter) RecordRequest(id string) {
	l.records.Add(1)
	l.Limiter.RecordRequest(id)
}

func (l *spyLimiter) WaitForNextAvailable(ctx context.Context, id string) error {
	l.waits.Add(1)
	return l.Limiter.WaitForNextAvailable(ctx, id)
}

func (l *spyLimiter) interactions() int32 {
	return l.checks.Load() + l.records.Load() + l.waits.Load()
}

type fixture struct {
	clock   *clock.Fake
	widgets *repository.MemoryWidgets
	cache   *storage.Cache
	limiter *spyLimiter
	content *fakeContent
	codec   fakeCodec
	cfg     config.Upstream
}

func newFixture() *fixture {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return &fixture{
		clock: clk,
		widgets: repository.NewMemoryWidgets(
			model.Widget{ID: "w1", Slug: "feed", Token: "sealed", DatabaseID: "db1", IsActive: true},
			model.Widget{ID: "w2", Slug: "off", Token: "sealed", DatabaseID: "db2", IsActive: false},
		),
		cache:   storage.New(config.Storage{CacheEnabled: true, CacheTTLSeconds: 30}, clk, nil, metrics.Nop{}),
		limiter: &spyLimiter{Limiter: rate.NewLimiter(config.Rate{}, clk)},
		content: &fakeContent{query: func(context.Context) ([]model.Post, error) {
			return []model.Post{postA, postB}, nil
		}},
		cfg: config.Upstream{UpstreamTimeout: time.Second},
	}
}

func (f *fixture) service() *Freshness {
	return NewFreshness(f.cfg, f.widgets, f.cache, f.limiter, f.content, f.codec, metrics.Nop{})
}

func TestCacheLifecycleScenario(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	res, err := svc.Posts(ctx, "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceUpstream, res.Source)
	assert.Equal(t, []model.Post{postA, postB}, res.Posts)
	assert.EqualValues(t, 1, f.content.calls.Load())

	f.clock.Advance(10 * time.Second)
	before := f.limiter.interactions()
	res, err = svc.Posts(ctx, "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, []model.Post{postA, postB}, res.Posts)
	assert.EqualValues(t, 1, f.content.calls.Load())
	assert.Equal(t, before, f.limiter.interactions(), "a cache hit does not touch the limiter")

	f.clock.Advance(21 * time.Second)
	res, err = svc.Posts(ctx, "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceUpstream, res.Source)
	assert.EqualValues(t, 2, f.content.calls.Load())
	assert.EqualValues(t, 2, f.limiter.records.Load())
}

func TestFallbackIsCachedOnUpstreamFailure(t *testing.T) {
	f := newFixture()
	f.content.query = func(context.Context) ([]model.Post, error) {
		return nil, errors.New("502 bad gateway")
	}
	svc := f.service()
	ctx := context.Background()

	first, err := svc.Posts(ctx, "feed", model.Filters{Platform: "Instagram"})
	require.NoError(t, err)
	second, err := svc.Posts(ctx, "feed", model.Filters{Platform: "Instagram"})
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, first.Source)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, model.FallbackPosts(), first.Posts)
	assert.Equal(t, first.Posts, second.Posts)
	assert.EqualValues(t, 1, f.content.calls.Load(), "second request must not reach upstream")
}

func TestUnknownOrInactiveWidget(t *testing.T) {
	f := newFixture()
	svc := f.service()

	for _, slug := range []string{"missing", "off"} {
		res, err := svc.Posts(context.Background(), slug, model.Filters{})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, res)
	}
	assert.Zero(t, f.limiter.interactions())
	assert.Zero(t, f.content.calls.Load())
	assert.Zero(t, f.cache.Stats().LocalCacheSize)
}

type failingWidgets struct{}

func (failingWidgets) GetBySlug(context.Context, string) (*model.Widget, error) {
	return nil, errors.New("server selection timeout")
}

func TestWidgetLookupFailureIsNotNotFound(t *testing.T) {
	f := newFixture()
	svc := NewFreshness(f.cfg, failingWidgets{}, f.cache, f.limiter, f.content, f.codec, metrics.Nop{})

	_, err := svc.Posts(context.Background(), "feed", model.Filters{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRateDeniedServesFallback(t *testing.T) {
	f := newFixture()
	f.limiter.deny = true
	svc := f.service()

	res, err := svc.Posts(context.Background(), "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Zero(t, f.content.calls.Load())
	assert.Zero(t, f.limiter.records.Load())

	res, err = svc.Posts(context.Background(), "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.EqualValues(t, 1, f.limiter.checks.Load())
}

func TestExhaustedRegularWindowWaits(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()
	start := f.clock.Now()

	for _, platform := range []string{"p1", "p2", "p3", "p4"} {
		res, err := svc.Posts(ctx, "feed", model.Filters{Platform: platform})
		require.NoError(t, err)
		assert.Equal(t, SourceUpstream, res.Source)
	}

	assert.EqualValues(t, 4, f.content.calls.Load())
	assert.Equal(t, time.Second, f.clock.Now().Sub(start), "fourth call waits for the first to leave the window")
}

func TestCredentialErrorDoesNotConsumeQuota(t *testing.T) {
	f := newFixture()
	f.codec = fakeCodec{err: errors.New("message authentication failed")}
	svc := f.service()

	res, err := svc.Posts(context.Background(), "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Zero(t, f.limiter.records.Load())
	assert.Zero(t, f.content.calls.Load())
}

func TestUpstreamTimeoutServesFallback(t *testing.T) {
	f := newFixture()
	f.cfg.UpstreamTimeout = 20 * time.Millisecond
	f.content.query = func(ctx context.Context) ([]model.Post, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	svc := f.service()

	res, err := svc.Posts(context.Background(), "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.EqualValues(t, 1, f.limiter.records.Load())
}

func TestCanceledRequestStillCachesResult(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx, cancel := context.WithCancel(context.Background())
	f.content.query = func(context.Context) ([]model.Post, error) {
		cancel()
		return []model.Post{postA}, nil
	}

	res, err := svc.Posts(ctx, "feed", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, SourceUpstream, res.Source)

	posts, found := f.cache.Get(context.Background(), "w1", model.Filters{})
	assert.True(t, found)
	assert.Equal(t, []model.Post{postA}, posts)
}

func TestWidgetDefaultFilters(t *testing.T) {
	f := newFixture()
	f.widgets.Put(model.Widget{
		ID: "w3", Slug: "ig", Token: "sealed", DatabaseID: "db3", IsActive: true,
		Settings: model.WidgetSettings{PlatformFilter: "Instagram", StatusFilter: "Published"},
	})
	svc := f.service()
	ctx := context.Background()

	res, err := svc.Posts(ctx, "ig", model.Filters{})
	require.NoError(t, err)
	assert.Equal(t, model.Filters{Platform: "Instagram", Status: "Published"}, res.Filters)

	res, err = svc.Posts(ctx, "ig", model.Filters{Platform: "TikTok"})
	require.NoError(t, err)
	assert.Equal(t, model.Filters{Platform: "TikTok", Status: "Published"}, res.Filters)

	assert.Equal(t, []model.Filters{
		{Platform: "Instagram", Status: "Published"},
		{Platform: "TikTok", Status: "Published"},
	}, f.content.filters)
}

func TestConcurrentMissesAreCoalesced(t *testing.T) {
	f := newFixture()
	f.cfg.CoalesceUpstream = true
	release := make(chan struct{})
	f.content.query = func(context.Context) ([]model.Post, error) {
		<-release
		return []model.Post{postA}, nil
	}
	svc := f.service()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Posts(context.Background(), "feed", model.Filters{})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return f.content.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, f.content.calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, []model.Post{postA}, res.Posts)
	}
}
