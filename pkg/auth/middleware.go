package auth

import (
	"net/http"
	"strings"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	apphttp "github.com/comicvault/credits/pkg/app/http"
)

// TokenValidator resolves a bearer token to an identity
type TokenValidator interface {
	Validate(token string) (*AuthInfo, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// caller's AuthInfo in the request context.
func RequireUser(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "missing bearer token"))
				return
			}

			info, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := AuthInfoFromContext(r.Context())
		if !ok {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "authentication required"))
			return
		}
		if !info.IsAdmin() {
			apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromRequest returns the caller identity stored by RequireUser.
func FromRequest(r *http.Request) (*AuthInfo, error) {
	info, ok := AuthInfoFromContext(r.Context())
	if !ok {
		return nil, apperrors.UnAuthorizedError(nil, "authentication required")
	}
	return info, nil
}
