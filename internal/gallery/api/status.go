package api

import (
	"github.com/Borislavv/notion-widget-cache/pkg/rate"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

const StatusPath = "/api/v1/status"

type StatusController struct {
	cache   storage.Storage
	limiter rate.Limiter
}

func NewStatusController(cache storage.Storage, limiter rate.Limiter) *StatusController {
	return &StatusController{cache: cache, limiter: limiter}
}

type statusResponse struct {
	Cache     storage.Stats `json:"cache"`
	RateLimit rate.Stats    `json:"rateLimit"`
}

func (c *StatusController) Status(r *fasthttp.RequestCtx) {
	respondWithJSON(r, fasthttp.StatusOK, statusResponse{
		Cache:     c.cache.Stats(),
		RateLimit: c.limiter.Stats(rate.DefaultIdentifier),
	})
}

func (c *StatusController) AddRoute(router *router.Router) {
	router.GET(StatusPath, c.Status)
}
