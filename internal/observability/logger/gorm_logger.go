package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig tunes the zap-backed GORM logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration

	// NotFoundIsError controls whether gorm.ErrRecordNotFound logs at
	// error level. Lookups against usage_records and subscriptions miss
	// routinely (a user who has never consumed a feature has no row),
	// so the default treats not-found as an ordinary query.
	NotFoundIsError bool
}

// DefaultGormLoggerConfig returns the production defaults.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 250 * time.Millisecond,
	}
}

// GormLogger adapts zap to gormlogger.Interface. Queries log at debug,
// slow queries at warn, failures at error.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.cfg.Level >= gormlogger.Info {
		FromContext(ctx).Info(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.cfg.Level >= gormlogger.Warn {
		FromContext(ctx).Warn(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.cfg.Level >= gormlogger.Error {
		FromContext(ctx).Error(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("operation", sqlVerb(sql)),
		zap.Duration("elapsed", elapsed),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	log := FromContext(ctx)
	switch {
	case err != nil && l.queryFailed(err) && l.cfg.Level >= gormlogger.Error:
		log.Error("query failed", append(fields, zap.Error(err))...)
	case l.cfg.SlowThreshold > 0 && elapsed >= l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		log.Warn("slow query", fields...)
	case l.cfg.Level >= gormlogger.Info:
		log.Debug("query", fields...)
	}
}

// ParamsFilter keeps bound values (user ids among them) out of logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) queryFailed(err error) bool {
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		return l.cfg.NotFoundIsError
	}
	return true
}

// sqlVerb finds the statement verb for the operation field. Scanning
// instead of taking the first token keeps CTE-prefixed statements honest.
func sqlVerb(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch strings.Trim(token, "();") {
		case "SELECT":
			return "SELECT"
		case "INSERT":
			return "INSERT"
		case "UPDATE":
			return "UPDATE"
		case "DELETE":
			return "DELETE"
		}
	}
	return "OTHER"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
