// Package dotenv loads .env files into the process environment. Variables
// already set in the environment are never overwritten.
package dotenv

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads each path in order, defaulting to ".env". Missing files are
// skipped; earlier files win over later ones.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// SplitList turns a comma-separated flag value into paths.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
