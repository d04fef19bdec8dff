package tipy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// traceSQL reports one executed statement. Failures go to Error, statements
// slower than the configured threshold to Warn, everything else to Debug.
func (db *DB) traceSQL(begin time.Time, query string, args []any, rows int64, err error) {
	if !db.logger.Core().Enabled(zapcore.DebugLevel) && err == nil && db.slowThreshold == 0 {
		return
	}

	elapsed := time.Since(begin)
	fields := []zap.Field{
		zap.String("sql", query),
		zap.Int("args", len(args)),
		zap.String("duration", fmt.Sprintf("%.3fms", float64(elapsed.Nanoseconds())/1e6)),
		zap.Int("depth", db.depth),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		fields = append(fields, zap.Error(err))
		db.logger.Error("SQL failed", fields...)

	case db.slowThreshold != 0 && elapsed > db.slowThreshold:
		fields = append(fields, zap.String("slow_threshold", db.slowThreshold.String()))
		db.logger.Warn("SLOW SQL executed", fields...)

	default:
		db.logger.Debug("SQL executed", fields...)
	}
}

// newLogger builds a production zap logger at the named level ("debug",
// "info", "warn", "error"). An empty level yields a no-op logger.
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		return zap.NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("tipy: invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
