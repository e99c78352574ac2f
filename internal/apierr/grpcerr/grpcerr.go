// Package grpcerr maps the apierr taxonomy onto gRPC status codes at the
// server boundary, and gives callers a code-based (never message-based)
// way to detect specific outcomes such as NOT_FOUND.
package grpcerr

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
)

// codeFor maps an apierr.Kind to the gRPC status code clients should see.
func codeFor(kind apierr.Kind) codes.Code {
	switch kind {
	case apierr.InvalidClient, apierr.InvalidToken:
		return codes.Unauthenticated
	case apierr.Forbidden:
		return codes.PermissionDenied
	case apierr.NotFound, apierr.NotRegistered:
		return codes.NotFound
	case apierr.Validation:
		return codes.InvalidArgument
	case apierr.RateLimited:
		return codes.ResourceExhausted
	case apierr.ServiceUnavailable:
		return codes.Unavailable
	case apierr.FencedOut:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// Wrap converts err into a *status.Status-bearing error carrying the
// generic client message for its apierr.Kind. A nil err returns nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	kind := apierr.KindOf(err)
	return status.Error(codeFor(kind), apierr.ClientMessage(kind))
}

// IsNotFound reports whether err carries a gRPC NOT_FOUND status,
// detected by code rather than by parsing the message (spec: "detected
// by status code, never by message parsing").
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// UnaryServerInterceptor converts handler errors to gRPC statuses at the
// boundary and logs the internal cause server-side, mirroring the
// generic-to-client/rich-to-log split used at the HTTP boundary.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		logger.Error("grpc handler error", "method", info.FullMethod, "error", err)
		return resp, Wrap(err)
	}
}
