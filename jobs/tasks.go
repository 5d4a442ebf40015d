package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stafflane/stafflane/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSendEmailHandler returns the worker handler for TaskTypeSendEmail.
func NewSendEmailHandler(mailer *mail.Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			if logger != nil {
				logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		}
		return nil
	}
}
