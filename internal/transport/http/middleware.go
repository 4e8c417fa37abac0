package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cwrk-planet/glasschat/pkg/httputil"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

func bearer(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireUser accepts only the access token of the user signed in to this
// client.
func RequireUser(id Identity, sess Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "missing or invalid Authorization header", nil)
				return
			}
			uid, err := id.VerifyAccessToken(token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid access token", nil)
				return
			}
			if uid != sess.UserID() {
				httputil.Error(w, http.StatusUnauthorized, "not signed in", nil)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUserID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}
