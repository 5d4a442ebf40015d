package jobs

import (
	"context"
	"fmt"

	"github.com/stafflane/stafflane/internal/mail"
)

// CredentialDispatcher queues the one-time credential notification for a
// newly created account. Enqueueing happens after the creating transaction
// commits; a failure here leaves the record in place.
type CredentialDispatcher struct {
	client *Client
}

// NewCredentialDispatcher constructs a CredentialDispatcher.
func NewCredentialDispatcher(client *Client) *CredentialDispatcher {
	return &CredentialDispatcher{client: client}
}

// DispatchCredentials enqueues the welcome email carrying the generated
// password.
func (d *CredentialDispatcher) DispatchCredentials(ctx context.Context, email, name, password string) error {
	_, err := d.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: mail.UserCreatedSubject,
		Body:    mail.UserCreatedBody(name, email, password),
	})
	if err != nil {
		return fmt.Errorf("jobs: enqueue credential email: %w", err)
	}
	return nil
}
