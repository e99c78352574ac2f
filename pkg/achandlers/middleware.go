// Package achandlers implements the AC's public HTTP surface: service
// token issuance (C4), internal meeting/guest token minting (C5), JWKS
// publication and rotation (C3), and admin client registration.
package achandlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/httpserver"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
)

type ctxKey string

const claimsKey ctxKey = "service_claims"

// ClaimsFromContext returns the validated service claims set by
// RequireServiceScope, if any.
func ClaimsFromContext(ctx context.Context) (actoken.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(actoken.Claims)
	return c, ok
}

// RequireServiceScope requires a service-typed bearer token carrying an
// exact-match scope (C5's middleware). Prefix, suffix, and case-variant
// scope matches are rejected — see Claims.HasScope.
func RequireServiceScope(validator *actoken.Validator, logger *slog.Logger, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(raw, prefix) {
				httpserver.RespondAPIError(w, logger, apierr.New(apierr.InvalidToken, nil, "missing bearer token"))
				return
			}
			token := strings.TrimPrefix(raw, prefix)

			_, claims, err := validator.Validate(r.Context(), token)
			if err != nil {
				httpserver.RespondAPIError(w, logger, err)
				return
			}
			if claims.TokenType != actoken.TokenService {
				httpserver.RespondAPIError(w, logger, apierr.New(apierr.Forbidden, nil, "token is not service-typed"))
				return
			}
			if !claims.HasScope(scope) {
				httpserver.RespondAPIError(w, logger, apierr.New(apierr.Forbidden, nil, "token missing required scope %q", scope))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
