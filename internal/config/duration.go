package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration parses a config duration. Empty or zero values yield def;
// negative or malformed values are errors naming the field.
func Duration(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
