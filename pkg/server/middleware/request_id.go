package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	RequestIDHeader = "X-Request-Id"
	RequestIDKey    = "requestID"
)

// RequestID keeps an inbound X-Request-Id or issues a new one, echoes it back
// and stores it under RequestIDKey for handlers to log.
type RequestID struct{}

func NewRequestID() *RequestID {
	return &RequestID{}
}

func (m *RequestID) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := string(ctx.Request.Header.Peek(RequestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		ctx.SetUserValue(RequestIDKey, id)
		ctx.Response.Header.Set(RequestIDHeader, id)

		next(ctx)
	}
}

// RequestIDFrom returns the id assigned by RequestID, or an empty string.
func RequestIDFrom(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue(RequestIDKey).(string)
	return id
}
