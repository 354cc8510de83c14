package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var envPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
}

// ExpandEnv replaces ${VAR} and ${VAR:-default} references. Unset variables
// expand to the default or to the empty string.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	s = envPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPatterns.withDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	return envPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPatterns.braced.FindStringSubmatch(match)[1])
	})
}

// LoadEnvFiles loads the given dotenv files, or .env.local and .env when
// none are given. Missing files are skipped and existing variables win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	return nil
}
