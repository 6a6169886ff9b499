package events

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// SlogAdapter implements watermill.LoggerAdapter on top of slog so the bus
// shares the application's logging stack. Watermill's routine delivery
// chatter logs at debug regardless of its own level.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append([]any{"error", err}, fieldArgs(fields)...)...)
}

func (a *SlogAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, fieldArgs(fields)...)
}

func (a *SlogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, fieldArgs(fields)...)
}

func (a *SlogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, fieldArgs(fields)...)
}

func (a *SlogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &SlogAdapter{logger: a.logger.With(fieldArgs(fields)...)}
}

func fieldArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

var _ watermill.LoggerAdapter = (*SlogAdapter)(nil)
