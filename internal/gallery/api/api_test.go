package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Borislavv/notion-widget-cache/internal/gallery/config"
	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	widgetconfig "github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/service"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/fasthttp/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type fakePoster struct {
	slug    string
	filters model.Filters
	err     error
	result  *service.Result
}

func (p *fakePoster) Posts(_ context.Context, slug string, f model.Filters) (*service.Result, error) {
	p.slug, p.filters = slug, f
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func sampleResult() *service.Result {
	return &service.Result{
		Widget: &model.Widget{
			ID: "w1", Slug: "feed", Token: "sealed-secret", IsActive: true,
			Settings: model.WidgetSettings{Title: "Launch <plan>", Columns: 2, ShowTitle: true},
		},
		Filters: model.Filters{Platform: "Instagram", Status: "all"},
		Source:  service.SourceUpstream,
		Posts: []model.Post{
			{
				ID: "p1", Title: "First", PublishDate: "2024-03-01", Platform: "Instagram",
				Images: []model.MediaRef{{URL: "https://cdn/p1.png", Name: "p1.png"}},
			},
			{
				ID: "p2", Title: "Clip",
				Videos: []model.MediaRef{{URL: "https://cdn/p2.mp4", Name: "p2.mp4"}},
			},
		},
	}
}

func newRouter(controllers ...interface{ AddRoute(*router.Router) }) fasthttp.RequestHandler {
	r := router.New()
	for _, c := range controllers {
		c.AddRoute(r)
	}
	return r.Handler
}

func do(h fasthttp.RequestHandler, method, uri string, header map[string]string, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	for k, v := range header {
		ctx.Request.Header.Set(k, v)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	h(ctx)
	return ctx
}

func testConfig() *config.Config {
	return &config.Config{}
}

func TestDataEndpoint(t *testing.T) {
	poster := &fakePoster{result: sampleResult()}
	h := newRouter(NewWidgetController(context.Background(), testConfig(), poster))

	ctx := do(h, fasthttp.MethodGet, "/api/v1/widgets/feed/data?platform=Instagram&status=", nil, "")

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "feed", poster.slug)
	assert.Equal(t, model.Filters{Platform: "Instagram"}, poster.filters)
	assert.Equal(t, "upstream", string(ctx.Response.Header.Peek(sourceHeader)))

	var body struct {
		Widget  map[string]any `json:"widget"`
		Source  string         `json:"source"`
		Posts   []model.Post   `json:"posts"`
		Filters model.Filters  `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "upstream", body.Source)
	assert.Len(t, body.Posts, 2)
	assert.Equal(t, "w1", body.Widget["id"])
	assert.NotContains(t, string(ctx.Response.Body()), "sealed-secret", "token must never be exposed")
}

func TestRenderers(t *testing.T) {
	h := newRouter(NewWidgetController(context.Background(), testConfig(), &fakePoster{result: sampleResult()}))

	html := do(h, fasthttp.MethodGet, "/embed/feed", nil, "")
	require.Equal(t, fasthttp.StatusOK, html.Response.StatusCode())
	assert.Contains(t, string(html.Response.Header.ContentType()), "text/html")
	assert.Contains(t, string(html.Response.Body()), `<img src="https://cdn/p1.png"`)
	assert.Contains(t, string(html.Response.Body()), `<video src="https://cdn/p2.mp4"`)
	assert.Contains(t, string(html.Response.Body()), "Launch &lt;plan&gt;")
	assert.Contains(t, string(html.Response.Body()), "repeat(2,1fr)")

	lite := do(h, fasthttp.MethodGet, "/embed/feed/lite", nil, "")
	require.Equal(t, fasthttp.StatusOK, lite.Response.StatusCode())
	assert.Equal(t, 1, strings.Count(string(lite.Response.Body()), "<img "), "lite shows images only")
	assert.NotContains(t, string(lite.Response.Body()), "<video")

	text := do(h, fasthttp.MethodGet, "/embed/feed/text", nil, "")
	require.Equal(t, fasthttp.StatusOK, text.Response.StatusCode())
	assert.Equal(t,
		"First | 2024-03-01 | Instagram | https://cdn/p1.png\nClip | https://cdn/p2.mp4\n",
		string(text.Response.Body()))

	svg := do(h, fasthttp.MethodGet, "/embed/feed/svg", nil, "")
	require.Equal(t, fasthttp.StatusOK, svg.Response.StatusCode())
	assert.Equal(t, contentTypeSVG, string(svg.Response.Header.ContentType()))
	assert.Contains(t, string(svg.Response.Body()), `width="244"`)
	assert.Equal(t, 1, strings.Count(string(svg.Response.Body()), "<image "))
}

func TestNotFoundInEveryFormat(t *testing.T) {
	h := newRouter(NewWidgetController(context.Background(), testConfig(), &fakePoster{err: service.ErrNotFound}))

	for _, tc := range []struct {
		path        string
		contentType string
	}{
		{"/api/v1/widgets/nope/data", contentTypeJSON},
		{"/embed/nope", contentTypeHTML},
		{"/embed/nope/lite", contentTypeHTML},
		{"/embed/nope/text", contentTypeText},
		{"/embed/nope/svg", contentTypeSVG},
	} {
		t.Run(tc.path, func(t *testing.T) {
			ctx := do(h, fasthttp.MethodGet, tc.path, nil, "")
			assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
			assert.Equal(t, tc.contentType, string(ctx.Response.Header.ContentType()))
		})
	}
}

func TestLookupFailureIsUnavailable(t *testing.T) {
	h := newRouter(NewWidgetController(context.Background(), testConfig(), &fakePoster{err: errors.New("lookup feed: mongo is down")}))

	for _, path := range []string{"/embed/feed", "/api/v1/widgets/feed/data"} {
		ctx := do(h, fasthttp.MethodGet, path, nil, "")
		assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		body := string(ctx.Response.Body())
		assert.Contains(t, body, errWidgetUnavailable.Error())
		assert.NotContains(t, body, "mongo")
		assert.NotContains(t, body, "feed")
	}
}

func TestStatusEndpoint(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cache := storage.New(widgetconfig.Storage{CacheEnabled: true, CacheTTLSeconds: 45}, clk, nil, metrics.Nop{})
	limiter := rate.NewLimiter(widgetconfig.Rate{}, clk)
	limiter.RecordRequest(rate.DefaultIdentifier)
	cache.Set(context.Background(), "w1", nil, model.Filters{})

	h := newRouter(NewStatusController(cache, limiter))
	ctx := do(h, fasthttp.MethodGet, StatusPath, nil, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var body statusResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, storage.Stats{Enabled: true, LocalCacheSize: 1, TTL: 45}, body.Cache)
	assert.Equal(t, rate.Stats{
		RegularRequests: 1, MaxRegularRequests: 3, BurstRequests: 1, MaxBurstRequests: 10, CanMakeRequest: true,
	}, body.RateLimit)
}

type fakeContent struct {
	err error
}

func (c fakeContent) QueryDatabase(context.Context, string, string, model.Filters) ([]model.Post, error) {
	return nil, c.err
}

func (c fakeContent) TestConnection(context.Context, string, string) error { return c.err }

func (c fakeContent) DetectColumns(context.Context, string, string) (model.Columns, error) {
	return model.Columns{Title: "Name", Media: []string{"Files"}}, c.err
}

func TestAdminInvalidate(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cache := storage.New(widgetconfig.Storage{CacheEnabled: true}, clk, nil, metrics.Nop{})
	cache.Set(context.Background(), "w1", nil, model.Filters{})
	cache.Set(context.Background(), "w2", nil, model.Filters{})

	h := newRouter(NewAdminController(context.Background(), "s3cret", cache, fakeContent{}))

	ctx := do(h, fasthttp.MethodDelete, "/api/v1/cache/w1", nil, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = do(h, fasthttp.MethodDelete, "/api/v1/cache/w1", map[string]string{"Authorization": "Bearer wrong"}, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.EqualValues(t, 2, cache.Stats().LocalCacheSize)

	ctx = do(h, fasthttp.MethodDelete, "/api/v1/cache/w1", map[string]string{"Authorization": "Bearer s3cret"}, "")
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	_, found := cache.Get(context.Background(), "w1", model.Filters{})
	assert.False(t, found)
	_, found = cache.Get(context.Background(), "w2", model.Filters{})
	assert.True(t, found)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	h := newRouter(NewAdminController(context.Background(), "", nil, fakeContent{}))

	ctx := do(h, fasthttp.MethodDelete, "/api/v1/cache/w1", map[string]string{"Authorization": "Bearer "}, "")
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
}

func TestAdminConnections(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer s3cret"}
	ok := newRouter(NewAdminController(context.Background(), "s3cret", nil, fakeContent{}))
	failing := newRouter(NewAdminController(context.Background(), "s3cret", nil, fakeContent{err: errors.New("object_not_found")}))
	body := `{"token":"secret_x","databaseId":"db1"}`

	ctx := do(ok, fasthttp.MethodPost, TestConnectionPath, auth, body)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = do(ok, fasthttp.MethodPost, DetectColumnsPath, auth, body)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var cols model.Columns
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &cols))
	assert.Equal(t, "Name", cols.Title)

	ctx = do(ok, fasthttp.MethodPost, TestConnectionPath, auth, `{"token":""}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = do(failing, fasthttp.MethodPost, TestConnectionPath, auth, body)
	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "object_not_found")
}
