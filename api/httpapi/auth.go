package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/auth"
)

// requireAuth admits requests carrying a valid Firebase ID token and puts the caller in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := auth.BearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			writeErr(w, http.StatusUnauthorized, auth.ErrNoToken.Error(), "")
			return
		}

		user, err := s.deps.Auth.Verify(r.Context(), raw)
		if err != nil {
			if errors.Is(err, auth.ErrNoToken) {
				writeErr(w, http.StatusUnauthorized, auth.ErrNoToken.Error(), "")
				return
			}
			s.logger.Warn("id token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			writeErr(w, http.StatusForbidden, auth.ErrInvalidToken.Error(), "")
			return
		}

		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}
