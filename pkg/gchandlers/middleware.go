package gchandlers

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

const claimsKey ctxKey = "user_claims"

// userContext carries both the token subject and its claims — the
// validator returns them separately since Subject is a registered JWT
// claim rather than part of the custom claims payload.
type userContext struct {
	Subject string
	Claims  actoken.Claims
}

// claimsFromContext returns the validated user context set by
// requireUserToken, if any.
func claimsFromContext(ctx context.Context) (userContext, bool) {
	c, ok := ctx.Value(claimsKey).(userContext)
	return c, ok
}

// requireUserToken validates a user-typed bearer token (spec §4.8: "GET
// /v1/meetings/{code} requires a user bearer token").
func requireUserToken(validator *actoken.Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(raw, prefix) {
				httpserver.RespondAPIError(w, logger, apierr.New(apierr.InvalidToken, nil, "missing bearer token"))
				return
			}
			token := strings.TrimPrefix(raw, prefix)

			subject, claims, err := validator.Validate(r.Context(), token)
			if err != nil {
				httpserver.RespondAPIError(w, logger, err)
				return
			}
			if claims.TokenType != actoken.TokenUser {
				httpserver.RespondAPIError(w, logger, apierr.New(apierr.Forbidden, nil, "token is not user-typed"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, userContext{Subject: subject, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
