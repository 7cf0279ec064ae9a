package api

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeSVG  = "image/svg+xml"
)

// Predefined JSON error bodies, ${message} is replaced with the escaped error text.
var (
	badRequestResponseBytes = []byte(`{
	  "status": 400,
	  "error": "Bad Request",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	unauthorizedResponseBytes = []byte(`{
	  "status": 401,
	  "error": "Unauthorized",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	forbiddenResponseBytes = []byte(`{
	  "status": 403,
	  "error": "Forbidden",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	notFoundResponseBytes = []byte(`{
	  "status": 404,
	  "error": "Not Found",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	badGatewayResponseBytes = []byte(`{
	  "status": 502,
	  "error": "Bad Gateway",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	serviceUnavailableResponseBytes = []byte(`{
	  "status": 503,
	  "error": "Service Unavailable",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	messagePlaceholder = []byte("${message}")
)

func respondWithTemplate(ctx *fasthttp.RequestCtx, status int, tpl []byte, err error) {
	ctx.SetStatusCode(status)
	ctx.SetContentType(contentTypeJSON)
	if _, werr := ctx.Write(resolveMessagePlaceholder(tpl, err)); werr != nil {
		log.Err(werr).Msg("[api] failed to write into *fasthttp.RequestCtx")
	}
}

// resolveMessagePlaceholder substitutes ${message} in template with escaped error message.
func resolveMessagePlaceholder(msg []byte, err error) []byte {
	escaped, _ := json.Marshal(err.Error())
	return bytes.ReplaceAll(msg, messagePlaceholder, escaped[1:len(escaped)-1])
}

func respondWithJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Err(err).Msg("[api] failed to marshal response")
		respondWithTemplate(ctx, fasthttp.StatusServiceUnavailable, serviceUnavailableResponseBytes, err)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType(contentTypeJSON)
	if _, err = ctx.Write(b); err != nil {
		log.Err(err).Msg("[api] failed to write into *fasthttp.RequestCtx")
	}
}
