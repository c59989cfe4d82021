package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// gormLogger writes gorm's statement log through the service logger.
// Statements slower than slowThreshold are logged at warn level, failed
// ones at error level and the rest at debug level.
type gormLogger struct {
	logger        observability.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger bridges gorm logging onto logger.
func NewGormLogger(logger observability.Logger, slowThreshold time.Duration) gormlogger.Interface {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &gormLogger{
		logger:        logger.With(observability.String("component", "gorm")),
		level:         gormlogger.Info,
		slowThreshold: slowThreshold,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.WithContext(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WithContext(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []observability.Field{
		observability.String("sql", sql),
		observability.Int64("rows", rows),
		observability.Duration("elapsed", elapsed),
	}
	log := l.logger.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		log.Error("sql statement failed", append(fields, observability.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		log.Warn("slow sql statement",
			append(fields, observability.Duration("threshold", l.slowThreshold))...)
	case l.level >= gormlogger.Info:
		log.Debug("sql statement", fields...)
	}
}
