package mail

import "fmt"

// UserCreatedSubject is the subject line for credential notifications.
const UserCreatedSubject = "Your account has been created"

// UserCreatedBody composes the one-time credential notification. The
// password appears here exactly once; it is never persisted in plaintext.
func UserCreatedBody(name, email, password string) string {
	return fmt.Sprintf(`Hello %s,

An account has been created for you.

  Email:    %s
  Password: %s

Please sign in and change your password.
`, name, email, password)
}
