// Package secrets resolves credentials given inline, as ${VAR} references
// or as files mounted by the container runtime.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// maxFileSize bounds secret files; tokens and passwords are small.
const maxFileSize = 64 * 1024

// Expand replaces ${VAR} and ${VAR:-fallback} references with environment
// values. A reference without fallback to an unset variable is an error.
func Expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	out := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ReadFile returns the content of a secret file without trailing newlines.
// Files readable by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("secret file unavailable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", clean)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("secret file larger than %d bytes: %s", maxFileSize, clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", clean, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", clean)
	}
	return secret, nil
}

// Resolve returns the secret for field. A file wins over the inline value;
// the inline value is expanded. An empty result is not an error.
func Resolve(field, file, value string) (string, error) {
	if file != "" {
		secret, err := ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("%s: %w", field, err)
		}
		return secret, nil
	}
	secret, err := Expand(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return secret, nil
}
