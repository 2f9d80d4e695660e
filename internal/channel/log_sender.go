package channel

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of a provider. Development only.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) Result {
	if err := ctx.Err(); err != nil {
		return Failure(err)
	}
	id := "log-" + uuid.NewString()
	s.logger.Info("follow-up message (log channel)",
		zap.String("to", to),
		zap.String("body", body),
		zap.String("message_id", id),
	)
	return Delivered(id)
}
