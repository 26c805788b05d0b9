package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"userapi/config"
	deliverycontext "userapi/internal/delivery/context"
	"userapi/internal/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// queryLogger implements gorm's logger.Interface on slog. Records go to the
// request logger found in ctx, so statements carry the request_id.
// Bind values are dropped: they include password digests.
type queryLogger struct {
	base          *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// newQueryLogger logs failures and slow statements; every statement in debug mode.
func newQueryLogger(base *slog.Logger, cfg *config.Config) logger.Interface {
	ql := &queryLogger{
		base:          base,
		level:         logger.Warn,
		slowThreshold: slowQueryThreshold,
	}
	if cfg != nil && cfg.Env.Debug {
		ql.level = logger.Info
	}

	return ql
}

func (ql *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	next := *ql
	next.level = level

	return &next
}

// ParamsFilter keeps placeholders in rendered SQL.
func (ql *queryLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (ql *queryLogger) Info(ctx context.Context, format string, args ...any) {
	ql.message(ctx, logger.Info, slog.LevelInfo, format, args)
}

func (ql *queryLogger) Warn(ctx context.Context, format string, args ...any) {
	ql.message(ctx, logger.Warn, slog.LevelWarn, format, args)
}

func (ql *queryLogger) Error(ctx context.Context, format string, args ...any) {
	ql.message(ctx, logger.Error, slog.LevelError, format, args)
}

func (ql *queryLogger) message(ctx context.Context, atLeast logger.LogLevel, level slog.Level, format string, args []any) {
	if !ql.enabled(atLeast) {
		return
	}

	ql.target(ctx).LogAttrs(ctx, level, "Database message",
		slog.String("message", fmt.Sprintf(format, args...)),
	)
}

// Trace is called by gorm after every statement.
func (ql *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if ql.base == nil || ql.level == logger.Silent {
		return
	}

	took := time.Since(begin)

	var (
		level slog.Level
		msg   string
		extra slog.Attr
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && ql.enabled(logger.Error):
		level, msg, extra = slog.LevelError, "Query failed", slog.String("error", err.Error())
	case ql.slowThreshold > 0 && took > ql.slowThreshold && ql.enabled(logger.Warn):
		level, msg, extra = slog.LevelWarn, "Slow query", slog.Duration("threshold", ql.slowThreshold)
	case ql.enabled(logger.Info):
		level, msg = slog.LevelInfo, "Query executed"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("statement", sql),
		slog.Int64("rows", rows),
		slog.Duration("duration", took),
	}
	if extra.Key != "" {
		attrs = append(attrs, extra)
	}

	ql.target(ctx).LogAttrs(ctx, level, msg, attrs...)
}

func (ql *queryLogger) enabled(atLeast logger.LogLevel) bool {
	return ql.base != nil && ql.level >= atLeast
}

func (ql *queryLogger) target(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return ql.base
	}

	return deliverycontext.GetLoggerOrDefault(ctx, ql.base)
}
