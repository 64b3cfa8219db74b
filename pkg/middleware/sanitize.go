package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lyoneil/Botpress/pkg/domain"
)

const (
	// SanitizerName is the name Sanitizer registers under.
	SanitizerName = "sanitizer"
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer returns an incoming middleware cleaning the text of user messages
// with SanitizeInput. It runs before every handler of default order.
// A limit of zero or less uses DefaultMaxInputSize.
func Sanitizer(limit int) Entry {
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	return Entry{
		Name:        SanitizerName,
		Description: "Rejects oversized messages and strips control characters",
		Direction:   domain.DirectionIncoming,
		Order:       -100,
		Handler: func(_ context.Context, evt *domain.Event, next Next) error {
			text, ok := evt.Payload["text"].(string)
			if !ok {
				next(nil, false, false)
				return nil
			}
			clean, err := SanitizeInput(text, limit)
			if err != nil {
				return err
			}
			evt.Payload["text"] = clean
			if evt.Preview == text {
				evt.Preview = clean
			}
			next(nil, false, false)
			return nil
		},
	}
}

// SanitizeInput cleans user input by enforcing size limits,
// validating UTF-8, and stripping dangerous control characters.
func SanitizeInput(input string, limit int) (string, error) {
	// We explicitly reject rather than truncate to ensure deterministic state.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Newline, tab and carriage return are kept. ANSI codes (ESC), NULL, BEL
	// and the like are removed: they poison logs and terminals.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
