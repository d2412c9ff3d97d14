package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/logger"
)

// ProjectLog records operational events into the persistent project
// log. Recording never fails the calling operation; a store error is
// reported through the verbose logger instead.
type ProjectLog struct {
	logStore driven.LogStore
}

// NewProjectLog creates a recorder over the given store. A nil store
// yields a recorder that only mirrors to the verbose logger.
func NewProjectLog(logStore driven.LogStore) *ProjectLog {
	return &ProjectLog{logStore: logStore}
}

// Record appends one event to the project log.
func (l *ProjectLog) Record(ctx context.Context, level domain.LogLevel, origin, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Debug("[%s] %s: %s", level, origin, msg)

	if l == nil || l.logStore == nil {
		return
	}
	rec := &domain.LogRecord{
		Level:     level,
		Message:   msg,
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.logStore.Append(ctx, rec); err != nil {
		logger.Warn("Failed to record project log entry: %v", err)
	}
}
