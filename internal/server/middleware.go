package server

import (
	"net/http"

	"ai-list-filter/internal/common/auth"
	"ai-list-filter/internal/common/errors"
)

// authenticate requires an active bearer token carrying the configured
// scope. It is a no-op when no token validator is wired.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.respondError(w, errors.NewAuthenticationError("missing bearer token"))
			return
		}

		info, err := s.deps.Tokens.ValidateToken(r.Context(), token)
		if err != nil {
			s.logger.Warn("token validation failed", map[string]interface{}{"error": err.Error()})
			s.respondError(w, errors.NewAuthenticationError("token could not be validated"))
			return
		}
		if !info.Active {
			s.respondError(w, errors.NewAuthenticationError("token is not active"))
			return
		}
		if !info.HasScope(s.deps.RequiredScope) {
			s.respondError(w, errors.NewAuthenticationError("token lacks the required scope"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireModule answers 403 while module id is switched off.
func (s *Server) requireModule(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, err := s.deps.Modules.Enabled(r.Context(), id)
			if err != nil {
				s.respondError(w, err)
				return
			}
			if !enabled {
				s.respondError(w, errors.NewModuleDisabledError(id))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
