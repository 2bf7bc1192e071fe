// Package security provides validation, sanitization, and limits for the training queue.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// Security limits and configuration
const (
	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 255

	// MaxBatchSize is the maximum number of rows accepted by one Enqueue call
	MaxBatchSize = 1000

	// MaxPayloadSize is the maximum size in bytes of a serialized queue payload (16MB)
	MaxPayloadSize = 16 << 20

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxConflictRetries is the hard limit for optimistic write retries
	MaxConflictRetries = 20
)

// validQueueName matches alphanumeric, hyphens, underscores, and dots.
// Queue names become object keys, so path separators are rejected.
var validQueueName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateQueueName validates a queue name
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validQueueName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateBatchSize rejects submissions larger than MaxBatchSize
func ValidateBatchSize(n int) error {
	if n > MaxBatchSize {
		return fmt.Errorf("%w: %d rows (max %d)", core.ErrBatchTooLarge, n, MaxBatchSize)
	}
	return nil
}

// ValidatePayloadSize rejects serialized payloads larger than MaxPayloadSize
func ValidatePayloadSize(n int) error {
	if n > MaxPayloadSize {
		return fmt.Errorf("trainq: queue payload of %d bytes exceeds %d", n, MaxPayloadSize)
	}
	return nil
}

// bearerToken matches credentials echoed back in provider error bodies.
var bearerToken = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)

// SanitizeErrorMessage prepares an error message for the queue document:
// control characters are dropped, bearer tokens redacted and the result
// capped at MaxErrorMessageLength runes.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	msg = strings.Map(func(r rune) rune {
		switch {
		case r == '\n', r == '\r', r == '\t':
			return r
		case r < 32, r == 127:
			return -1
		}
		return r
	}, msg)
	msg = bearerToken.ReplaceAllString(strings.TrimSpace(msg), "${1}[redacted]")

	if utf8.RuneCountInString(msg) > MaxErrorMessageLength {
		runes := []rune(msg)
		msg = string(runes[:MaxErrorMessageLength-3]) + "..."
	}
	return msg
}

// ClampConflictRetries ensures the optimistic retry count is within limits
func ClampConflictRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxConflictRetries {
		return MaxConflictRetries
	}
	return n
}
