package outcome

import (
	"context"
	"errors"

	"github.com/conneroisu/ssrgate/internal/logging"
)

// LogSink writes each record as one structured log line. Success and miss
// records are logged at info, errors at error level.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink over logger.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent("outcome")}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, rec Record) {
	fields := []interface{}{
		"outcome", string(rec.Kind),
		"route", rec.Route,
		"locale", rec.Locale,
		"status", rec.Status,
		"durationMs", rec.DurationMs,
	}
	if rec.Slug != "" {
		fields = append(fields, "slug", rec.Slug)
	}
	if rec.RequestID != "" {
		fields = append(fields, "requestId", rec.RequestID)
	}
	if rec.Source != "" {
		fields = append(fields, "source", rec.Source)
	}
	if rec.ETag != "" {
		fields = append(fields, "etag", rec.ETag)
	}
	if rec.Blocks > 0 {
		fields = append(fields, "blocks", rec.Blocks)
	}
	if len(rec.Fallbacks) > 0 {
		fields = append(fields, "fallbacks", rec.Fallbacks)
	}

	if rec.Level == LevelError {
		if rec.ErrorStack != "" {
			fields = append(fields, "errorStack", rec.ErrorStack)
		}
		s.logger.Error(ctx, errors.New(rec.Message), "request failed", fields...)
		return
	}
	s.logger.Info(ctx, "request completed", fields...)
}
