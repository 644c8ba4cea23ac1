// Package env provides tiny environment lookups needed before the full
// config is loaded.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

// IsTrue reports whether key is set to a truthy value ("1", "true", "yes").
func IsTrue(key string) bool {
	switch strings.ToLower(Get(key, "")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
