package api

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"time"

	"github.com/Borislavv/notion-widget-cache/internal/gallery/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/server/middleware"
	"github.com/Borislavv/notion-widget-cache/pkg/service"
	"github.com/Borislavv/notion-widget-cache/pkg/utils"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	WidgetDataPath  = "/api/v1/widgets/{slug}/data"
	EmbedPath       = "/embed/{slug}"
	EmbedLitePath   = "/embed/{slug}/lite"
	EmbedTextPath   = "/embed/{slug}/text"
	EmbedSVGPath    = "/embed/{slug}/svg"
	sourceHeader    = "X-Widget-Source"
	defaultDeadline = 30 * time.Second
	zeroLiteral     = "0"
)

var (
	notFoundHTML = []byte(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Not found</title></head><body><p>Widget not found.</p></body></html>`)
	notFoundText = []byte("widget not found\n")
	notFoundSVG  = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="240" height="40"><text x="8" y="24" font-family="sans-serif" font-size="14">Widget not found</text></svg>`)

	// the cause is logged, viewers only see this
	errWidgetUnavailable = errors.New("widget is temporarily unavailable")
)

// Poster is the freshness pipeline every renderer goes through.
type Poster interface {
	Posts(ctx context.Context, slug string, filters model.Filters) (*service.Result, error)
}

// WidgetController renders widget posts as JSON, HTML, lite HTML, plain text and SVG.
type WidgetController struct {
	ctx      context.Context
	cfg      *config.Config
	posts    Poster
	deadline time.Duration
	durCh    chan served // nil unless debug is on
}

type served struct {
	dur    time.Duration
	source service.Source
}

func NewWidgetController(ctx context.Context, cfg *config.Config, posts Poster) *WidgetController {
	deadline := cfg.GetHttpServerRequestTimeout()
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	c := &WidgetController{ctx: ctx, cfg: cfg, posts: posts, deadline: deadline}
	if cfg.IsDebugOn() {
		c.runLogger(ctx)
	}
	return c
}

func (c *WidgetController) AddRoute(router *router.Router) {
	router.GET(WidgetDataPath, c.Data)
	router.GET(EmbedPath, c.Embed)
	router.GET(EmbedLitePath, c.EmbedLite)
	router.GET(EmbedTextPath, c.EmbedText)
	router.GET(EmbedSVGPath, c.EmbedSVG)
}

type widgetView struct {
	ID       string               `json:"id"`
	Slug     string               `json:"slug"`
	Settings model.WidgetSettings `json:"settings"`
}

type dataResponse struct {
	Widget  widgetView     `json:"widget"`
	Filters model.Filters  `json:"filters"`
	Source  service.Source `json:"source"`
	Posts   []model.Post   `json:"posts"`
}

func (c *WidgetController) Data(r *fasthttp.RequestCtx) {
	res, ok := c.resolve(r, func(r *fasthttp.RequestCtx, err error) {
		respondWithTemplate(r, fasthttp.StatusNotFound, notFoundResponseBytes, err)
	})
	if !ok {
		return
	}
	respondWithJSON(r, fasthttp.StatusOK, dataResponse{
		Widget:  widgetView{ID: res.Widget.ID, Slug: res.Widget.Slug, Settings: res.Widget.Settings},
		Filters: res.Filters,
		Source:  res.Source,
		Posts:   res.Posts,
	})
}

func (c *WidgetController) Embed(r *fasthttp.RequestCtx) {
	res, ok := c.resolve(r, notFoundWriter(contentTypeHTML, notFoundHTML))
	if !ok {
		return
	}
	body, err := renderGallery(res)
	c.write(r, contentTypeHTML, body, err)
}

func (c *WidgetController) EmbedLite(r *fasthttp.RequestCtx) {
	res, ok := c.resolve(r, notFoundWriter(contentTypeHTML, notFoundHTML))
	if !ok {
		return
	}
	body, err := renderLite(res)
	c.write(r, contentTypeHTML, body, err)
}

func (c *WidgetController) EmbedText(r *fasthttp.RequestCtx) {
	res, ok := c.resolve(r, notFoundWriter(contentTypeText, notFoundText))
	if !ok {
		return
	}
	c.write(r, contentTypeText, renderText(res), nil)
}

func (c *WidgetController) EmbedSVG(r *fasthttp.RequestCtx) {
	res, ok := c.resolve(r, notFoundWriter(contentTypeSVG, notFoundSVG))
	if !ok {
		return
	}
	body, err := renderSVG(res)
	c.write(r, contentTypeSVG, body, err)
}

// resolve runs the freshness pipeline for the slug and filters of the request.
// On failure the response is already written and ok is false.
func (c *WidgetController) resolve(r *fasthttp.RequestCtx, notFound func(*fasthttp.RequestCtx, error)) (res *service.Result, ok bool) {
	from := time.Now()

	ctx, cancel := context.WithTimeout(c.ctx, c.deadline)
	defer cancel()

	slug, _ := r.UserValue("slug").(string)
	filters := model.Filters{
		// copied: query args are reused by fasthttp after the handler returns
		Platform: string(r.QueryArgs().Peek("platform")),
		Status:   string(r.QueryArgs().Peek("status")),
	}

	res, err := c.posts.Posts(ctx, slug, filters)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			notFound(r, err)
			return nil, false
		}
		log.Error().
			Err(err).
			Str("slug", slug).
			Str("requestID", middleware.RequestIDFrom(r)).
			Msg("[widget-controller] handle request error")
		respondWithTemplate(r, fasthttp.StatusServiceUnavailable, serviceUnavailableResponseBytes, errWidgetUnavailable)
		return nil, false
	}

	r.Response.Header.Set(sourceHeader, string(res.Source))
	if c.durCh != nil {
		select {
		case c.durCh <- served{dur: time.Since(from), source: res.Source}:
		default:
		}
	}
	return res, true
}

func (c *WidgetController) write(r *fasthttp.RequestCtx, contentType string, body []byte, err error) {
	if err != nil {
		log.Err(err).Str("path", string(r.Path())).Msg("[widget-controller] render failed")
		respondWithTemplate(r, fasthttp.StatusServiceUnavailable, serviceUnavailableResponseBytes, err)
		return
	}
	r.SetStatusCode(fasthttp.StatusOK)
	r.SetContentType(contentType)
	if _, err = r.Write(body); err != nil {
		log.Err(err).Msg("[widget-controller] failed to write into *fasthttp.RequestCtx")
	}
}

func notFoundWriter(contentType string, body []byte) func(*fasthttp.RequestCtx, error) {
	return func(r *fasthttp.RequestCtx, _ error) {
		r.SetStatusCode(fasthttp.StatusNotFound)
		r.SetContentType(contentType)
		if _, err := r.Write(body); err != nil {
			log.Err(err).Msg("[widget-controller] failed to write into *fasthttp.RequestCtx")
		}
	}
}

// stat is a windowed request statistic for debug logging.
type stat struct {
	label    string
	divider  int // window size in seconds
	tickerCh <-chan time.Time
	count    int
	total    time.Duration
	bySource map[service.Source]int
}

// runLogger periodically logs rps, average duration and the source mix per window.
func (c *WidgetController) runLogger(ctx context.Context) {
	c.durCh = make(chan served, runtime.GOMAXPROCS(0))

	go func() {
		stats := []*stat{
			{label: "5s", divider: 5, tickerCh: utils.NewTicker(ctx, 5*time.Second)},
			{label: "1m", divider: 60, tickerCh: utils.NewTicker(ctx, time.Minute)},
			{label: "5m", divider: 300, tickerCh: utils.NewTicker(ctx, 5*time.Minute)},
		}
		for _, s := range stats {
			s.bySource = make(map[service.Source]int, 3)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case req := <-c.durCh:
				for _, s := range stats {
					s.count++
					s.total += req.dur
					s.bySource[req.source]++
				}
			case <-stats[0].tickerCh:
				logAndReset(stats[0])
			case <-stats[1].tickerCh:
				logAndReset(stats[1])
			case <-stats[2].tickerCh:
				logAndReset(stats[2])
			}
		}
	}()
}

func logAndReset(s *stat) {
	avg := zeroLiteral
	if s.count > 0 {
		avg = (s.total / time.Duration(s.count)).String()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	log.Info().Msgf(
		"[widget-controller][%s] served %d requests (rps: %s, avgDuration: %s, cache: %d, upstream: %d, fallback: %d, heap: %s)",
		s.label, s.count, strconv.Itoa(s.count/s.divider), avg,
		s.bySource[service.SourceCache], s.bySource[service.SourceUpstream], s.bySource[service.SourceFallback],
		utils.FmtMemory(ms.HeapAlloc),
	)
	s.count = 0
	s.total = 0
	clear(s.bySource)
}
