package handlers

import (
	"net/http"
	"strings"

	"gitlab.com/cgs-2025.net/internal/core/services/auth"
	"gitlab.com/cgs-2025.net/internal/handlers/response"
)

type MiddlewareProvider struct {
	authService auth.IAuthService
}

func New(authService auth.IAuthService) *MiddlewareProvider {
	return &MiddlewareProvider{
		authService: authService,
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// JWTMiddleware rejects requests without a valid token and attaches
// the verified identity to the request context
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			response.WriteError(w, response.ErrorMessage{
				Message:    "Authorization header missing",
				StatusCode: http.StatusUnauthorized,
			})
			return
		}

		payload, err := m.authService.Identity(r.Context(), token)
		if err != nil {
			response.WriteError(w, response.ErrorMessage{
				Message:    "Invalid token",
				StatusCode: http.StatusUnauthorized,
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), payload)))
	})
}

// OptionalJWTMiddleware attaches the identity when a valid token is
// present but lets anonymous requests through. Routes serving both
// visitors and contestants use this.
func (m *MiddlewareProvider) OptionalJWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		payload, err := m.authService.Identity(r.Context(), token)
		if err != nil {
			response.WriteError(w, response.ErrorMessage{
				Message:    "Invalid token",
				StatusCode: http.StatusUnauthorized,
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), payload)))
	})
}
