package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM's logging into a Logger. Statements are
// logged at trace level; slow statements and failures are warnings.
//
//	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
//	    Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), 200*time.Millisecond),
//	})
type GormLoggerAdapter struct {
	logger        Logger
	slowThreshold time.Duration
	silent        bool
}

// NewGormLoggerAdapter creates a new GORM logger adapter. A zero
// slowThreshold disables slow statement warnings.
func NewGormLoggerAdapter(l Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if l == nil {
		l = Global().Module("gorm")
	}
	return &GormLoggerAdapter{
		logger:        l,
		slowThreshold: slowThreshold,
	}
}

// LogMode only honours gorm's Silent level; verbosity otherwise follows
// the module logger.
func (a *GormLoggerAdapter) LogMode(level gorm_logger.LogLevel) gorm_logger.Interface {
	clone := *a
	clone.silent = level == gorm_logger.Silent
	return &clone
}

// Info is mapped to debug because gorm is chatty at info.
func (a *GormLoggerAdapter) Info(ctx context.Context, msg string, data ...any) {
	if a.silent {
		return
	}
	a.logger.WithContext(ctx).Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(ctx context.Context, msg string, data ...any) {
	if a.silent {
		return
	}
	a.logger.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(ctx context.Context, msg string, data ...any) {
	if a.silent {
		return
	}
	a.logger.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
}

// Trace records one executed statement. Record-not-found is an expected
// outcome of lookups and is not reported as a failure.
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if a.silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	l := a.logger.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.Warn("statement failed",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed),
			Error(err))
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		l.Warn("slow statement",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed),
			Duration("threshold", a.slowThreshold))
	default:
		l.Trace("statement",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed))
	}
}
