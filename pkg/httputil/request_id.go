package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cwrk-planet/glasschat/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

type reqIDKey struct{}

// maxRequestIDLen bounds ids forwarded by clients.
const maxRequestIDLen = 64

// MiddlewareRequestID forwards a sane X-Request-ID or generates one, and
// tags log calls under the request context with it.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), reqIDKey{}, id)
		ctx = logger.ContextWith(ctx, slog.String("req_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id set by MiddlewareRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
