package rpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/apierr/grpcerr"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
)

// RequireServiceToken builds a server-side interceptor enforcing that
// every internal RPC carries a valid service bearer token in the
// "authorization" metadata (spec §6: "All internal RPCs require a
// service bearer token ... structural validation mandatory, cryptographic
// validation via C3 JWKS"). Mirrors achandlers.RequireServiceScope's shape,
// adapted from an HTTP middleware to a gRPC interceptor.
func RequireServiceToken(validator *actoken.Validator, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, grpcerr.Wrap(apierr.New(apierr.InvalidToken, nil, "missing authorization metadata"))
		}
		vals := md.Get("authorization")
		if len(vals) == 0 || !strings.HasPrefix(vals[0], "Bearer ") {
			return nil, grpcerr.Wrap(apierr.New(apierr.InvalidToken, nil, "missing bearer token"))
		}
		raw := strings.TrimPrefix(vals[0], "Bearer ")

		_, claims, err := validator.Validate(ctx, raw)
		if err != nil {
			logger.Warn("grpc auth failed", "method", info.FullMethod, "error", err)
			return nil, grpcerr.Wrap(err)
		}
		if claims.TokenType != actoken.TokenService {
			return nil, grpcerr.Wrap(apierr.New(apierr.Forbidden, nil, "token is not service-typed"))
		}

		return handler(ctx, req)
	}
}
