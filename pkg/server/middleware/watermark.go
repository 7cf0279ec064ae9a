package middleware

import (
	serverconfig "github.com/Borislavv/notion-widget-cache/pkg/server/config"
	"github.com/valyala/fasthttp"
)

type WatermarkMiddleware struct {
	config serverconfig.Configurator
}

func NewWatermarkMiddleware(config serverconfig.Configurator) *WatermarkMiddleware {
	return &WatermarkMiddleware{config: config}
}

func (m *WatermarkMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set("X-Server-Name", m.config.GetHttpServerName())

		next(ctx)
	}
}
