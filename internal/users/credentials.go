package users

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// GeneratedPasswordLength is the length of one-time credentials issued to
// newly created accounts.
const GeneratedPasswordLength = 12

const passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random credential of the given length drawn
// uniformly from a broad alphabet. The value is handed to the notification
// dispatcher exactly once and persists only as a bcrypt hash.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("users: password length must be positive, got %d", length)
	}
	var sb strings.Builder
	sb.Grow(length)
	n := uint32(len(passwordCharset))
	for sb.Len() < length {
		var v uint32
		if err := binary.Read(rand.Reader, binary.BigEndian, &v); err != nil {
			return "", fmt.Errorf("users: read random: %w", err)
		}
		// Rejection sampling keeps the draw unbiased over the charset.
		if uint64(v) >= (1<<32/uint64(n))*uint64(n) {
			continue
		}
		sb.WriteByte(passwordCharset[v%n])
	}
	return sb.String(), nil
}
