package logging

import (
	"log/slog"
	"strings"
)

const RedactedValue = "[REDACTED]"

// Secret logs a credential by presence only.
func Secret(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, "")
	}
	return slog.String(key, RedactedValue)
}
