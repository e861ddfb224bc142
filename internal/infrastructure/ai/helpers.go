package ai

import (
	"fmt"
	"os"
	"strings"
)

// resolveAuth prefers the runtime override, then the model's env var, then the
// backend's conventional env var.
func resolveAuth(override, primary, fallback string) string {
	if override != "" {
		return override
	}
	if primary != "" {
		if value := os.Getenv(primary); value != "" {
			return value
		}
	}
	if fallback == "" {
		return ""
	}
	return os.Getenv(fallback)
}

func missingKeyError(primary, fallback string) error {
	if primary == "" || primary == fallback {
		return fmt.Errorf("missing API key: set %s", fallback)
	}
	return fmt.Errorf("missing API key: set %s or %s", primary, fallback)
}

// joinEndpoint appends path to base unless base already ends with it.
func joinEndpoint(base, path string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, path) {
		return base
	}
	return base + path
}

func valueOrDefault(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}

func valueOrDefaultInt(value int, def int) int {
	if value == 0 {
		return def
	}
	return value
}
