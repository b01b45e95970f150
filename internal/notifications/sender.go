package notifications

import (
	"context"

	"github.com/ingressolab/ingresso-backend/pkg/logger"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a rendered message. Implementations decide transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the application log instead of delivering
// them. It is the default in development environments.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		s.logg.Info(logCtx, "notification logged instead of sent")
	}
	return nil
}
