// Package logging sets up the process-wide zap logger, grounded on
// windoze95-saltybytes' internal/logger package: a once-initialized global
// singleton, a development console encoder vs. a production JSON encoder,
// and a Sync() called before exit. The request-ID middleware from that
// teacher is gin-specific and has no analogue here; it's replaced with
// WithExchange, scoping a logger to one request/response pair the way the
// teacher scopes one to an inbound HTTP request.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"slumber/internal/model"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Init initializes the global logger. In development mode it uses a
// human-readable, colorized console encoder; otherwise JSON.
func Init(isDev bool) {
	once.Do(func() {
		var cfg zap.Config
		if isDev {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
		}

		built, err := cfg.Build()
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
		global = built
	})
}

// Get returns the global logger singleton, falling back to a no-op logger
// if Init has not been called (e.g. in tests).
func Get() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// With returns a child logger with the given fields attached.
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// WithExchange returns a child logger scoped to one request/recipe pair, for
// log lines emitted around a build-send-persist cycle.
func WithExchange(recipe model.RecipeId, requestID model.RequestId) *zap.Logger {
	return Get().With(
		zap.String("recipe_id", string(recipe)),
		zap.String("request_id", string(requestID)),
	)
}

// Sync flushes any buffered log entries. Call before the process exits.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
