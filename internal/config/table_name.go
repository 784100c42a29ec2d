package config

import (
	"fmt"
	"strings"
)

// TableName sanitizes a container name into a storage-safe table
// identifier: letters, digits, underscore, dash, and dot pass through;
// anything else is replaced by its 4-hex-digit code point escape. The
// result is always prefixed "c_" so it can never collide with an
// internal table name.
func TableName(container string) string {
	var b strings.Builder
	b.WriteString("c_")
	for _, r := range container {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		} else {
			fmt.Fprintf(&b, "%04x", r)
		}
	}
	return b.String()
}
