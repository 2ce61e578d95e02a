package client

import (
	"context"

	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
)

// interceptorLogger routes go-grpc-middleware call logs to l.
func interceptorLogger(l logging.Logger) grpclogging.Logger {
	return grpclogging.LoggerFunc(func(ctx context.Context, lvl grpclogging.Level, msg string, fields ...any) {
		switch lvl {
		case grpclogging.LevelDebug:
			l.Debug(ctx, msg, fields...)
		case grpclogging.LevelInfo:
			l.Info(ctx, msg, fields...)
		case grpclogging.LevelWarn:
			l.Warn(ctx, msg, fields...)
		default:
			l.Error(ctx, msg, fields...)
		}
	})
}
