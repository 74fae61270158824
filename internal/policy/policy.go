package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

// CheckToolAllowed reports whether a tool may be offered to and called by
// the model. An empty allowlist allows every tool.
func CheckToolAllowed(allowlist []string, toolName string) error {
	if len(allowlist) == 0 {
		return nil
	}
	name := normalize(toolName)
	for _, allowed := range allowlist {
		if normalize(allowed) == name {
			return nil
		}
	}
	return clierr.New(clierr.CodeUsage, fmt.Sprintf("tool %s is blocked by agent.enable_tools policy", toolName))
}

// SplitList parses a comma-separated allowlist.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if norm := normalize(part); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
