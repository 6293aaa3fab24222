package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/opentrusty/tenantdir/internal/errs"
	"github.com/opentrusty/tenantdir/internal/observability/logger"
	"github.com/opentrusty/tenantdir/internal/tenant"
)

// ErrorStatus maps a service error to a gRPC status error. Errors that already
// carry a status pass through. INTERNAL details are never returned.
func ErrorStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	kind := errs.KindOf(err)
	return status.Error(codeFor(kind), errs.Message(err))
}

func codeFor(kind errs.Kind) codes.Code {
	switch kind {
	case errs.KindValidation:
		return codes.InvalidArgument
	case errs.KindNotFound:
		return codes.NotFound
	case errs.KindRefused:
		return codes.PermissionDenied
	case errs.KindContextMissing:
		return codes.Unauthenticated
	case errs.KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// ErrorUnaryInterceptor translates handler errors with ErrorStatus.
func ErrorUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			if errs.KindOf(err) == errs.KindInternal {
				slog.ErrorContext(ctx, "rpc failed",
					logger.Operation(info.FullMethod),
					logger.Error(err),
				)
			}
			return resp, ErrorStatus(err)
		}
		return resp, nil
	}
}

// RequireTenant rejects calls whose tenant did not resolve, except for the
// listed full method names.
func RequireTenant(exempt ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(exempt))
	for _, m := range exempt {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !skip[info.FullMethod] {
			if _, err := tenant.Require(ctx); err != nil {
				return nil, ErrorStatus(err)
			}
		}
		return handler(ctx, req)
	}
}
