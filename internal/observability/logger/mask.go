package logger

import "strings"

// MaskPIN hides a device unlock PIN entirely; its length is the only thing
// worth logging.
func MaskPIN(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.Repeat("*", len(value))
}

// MaskSecret keeps only the last four characters of a secret value.
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return maskLast4(value)
}

func maskLast4(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
