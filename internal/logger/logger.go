package logger

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger, or a console logger when development is set.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// WithRequest attaches the chi request id, when present, to the logger.
func WithRequest(ctx context.Context, log *zap.Logger) *zap.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return log.With(zap.String("request_id", id))
	}
	return log
}
