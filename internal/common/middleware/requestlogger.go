package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// RequestLogger logs the request details and adds a unique request ID to the
// context and response headers.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := newRequestId()
		ctx = context.WithValue(ctx, requestIdKey, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)
		w.Header().Set("X-MakerHub-Request-ID", requestID)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		requestFields := map[string]interface{}{
			"requestURL":    fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI),
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}
		log.Ctx(ctx).Info().Fields(requestFields).Msg("")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestId() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return u.String()
}
