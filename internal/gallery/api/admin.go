package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/repository"
	"github.com/Borislavv/notion-widget-cache/pkg/storage"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	gotilsstrconv "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
)

const (
	InvalidateCachePath   = "/api/v1/cache/{widgetId}"
	TestConnectionPath    = "/api/v1/connections/test"
	DetectColumnsPath     = "/api/v1/connections/columns"
	connectionCallTimeout = 10 * time.Second
)

var (
	bearerPrefix = []byte("Bearer ")

	errAdminDisabled   = errors.New("admin api is disabled")
	errBadCredentials  = errors.New("missing or invalid bearer token")
	errBadConnectionIn = errors.New(`body must be {"token": "...", "databaseId": "..."}`)
)

// AdminController serves operator endpoints guarded by the ADMIN_TOKEN bearer token.
// An empty admin token disables them.
type AdminController struct {
	ctx        context.Context
	adminToken string
	cache      storage.Storage
	content    repository.ContentSource
}

func NewAdminController(ctx context.Context, adminToken string, cache storage.Storage, content repository.ContentSource) *AdminController {
	return &AdminController{ctx: ctx, adminToken: adminToken, cache: cache, content: content}
}

func (c *AdminController) AddRoute(router *router.Router) {
	router.DELETE(InvalidateCachePath, c.guard(c.Invalidate))
	router.POST(TestConnectionPath, c.guard(c.TestConnection))
	router.POST(DetectColumnsPath, c.guard(c.DetectColumns))
}

func (c *AdminController) guard(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(r *fasthttp.RequestCtx) {
		if c.adminToken == "" {
			respondWithTemplate(r, fasthttp.StatusForbidden, forbiddenResponseBytes, errAdminDisabled)
			return
		}
		auth := r.Request.Header.Peek(fasthttp.HeaderAuthorization)
		if !bytes.HasPrefix(auth, bearerPrefix) ||
			subtle.ConstantTimeCompare(auth[len(bearerPrefix):], gotilsstrconv.S2B(c.adminToken)) != 1 {
			respondWithTemplate(r, fasthttp.StatusUnauthorized, unauthorizedResponseBytes, errBadCredentials)
			return
		}
		next(r)
	}
}

func (c *AdminController) Invalidate(r *fasthttp.RequestCtx) {
	widgetID, _ := r.UserValue("widgetId").(string)
	c.cache.Invalidate(c.ctx, widgetID)
	r.SetStatusCode(fasthttp.StatusNoContent)
}

type connectionRequest struct {
	Token      string `json:"token"`
	DatabaseID string `json:"databaseId"`
}

func (c *AdminController) TestConnection(r *fasthttp.RequestCtx) {
	in, ok := c.parseConnection(r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, connectionCallTimeout)
	defer cancel()

	if err := c.content.TestConnection(ctx, in.Token, in.DatabaseID); err != nil {
		log.Warn().Err(err).Str("database", in.DatabaseID).Msg("[admin-controller] connection test failed")
		respondWithTemplate(r, fasthttp.StatusBadGateway, badGatewayResponseBytes, err)
		return
	}
	respondWithJSON(r, fasthttp.StatusOK, map[string]bool{"success": true})
}

func (c *AdminController) DetectColumns(r *fasthttp.RequestCtx) {
	in, ok := c.parseConnection(r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, connectionCallTimeout)
	defer cancel()

	cols, err := c.content.DetectColumns(ctx, in.Token, in.DatabaseID)
	if err != nil {
		log.Warn().Err(err).Str("database", in.DatabaseID).Msg("[admin-controller] column detection failed")
		respondWithTemplate(r, fasthttp.StatusBadGateway, badGatewayResponseBytes, err)
		return
	}
	respondWithJSON(r, fasthttp.StatusOK, cols)
}

func (c *AdminController) parseConnection(r *fasthttp.RequestCtx) (connectionRequest, bool) {
	var in connectionRequest
	if err := json.Unmarshal(r.PostBody(), &in); err != nil || in.Token == "" || in.DatabaseID == "" {
		respondWithTemplate(r, fasthttp.StatusBadRequest, badRequestResponseBytes, errBadConnectionIn)
		return in, false
	}
	return in, true
}
