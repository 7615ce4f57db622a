package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/server/auth"
)

type ctxKey string

const owUserIDKey ctxKey = "owUserID"

// requireAuth resolves the acting identity from the Authorization header and
// stores the external user id in the request context. A missing header and
// an unverifiable token are distinct failures, mirrored in the error kinds.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if header == "" {
			writeError(w, common.ErrMissingAuthorization)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, common.ErrInvalidAccessToken)
			return
		}

		owUserID, err := auth.GetOWUserIDFromToken(token, h.jwtSecret)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), owUserIDKey, owUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// owUserIDFromContext returns the external user id placed there by
// requireAuth.
func owUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(owUserIDKey).(int64)
	return id, ok
}
