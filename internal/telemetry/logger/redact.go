package logger

import (
	"log/slog"
	"strings"
)

// sensitiveValuePrefixes are partially masked wherever they appear.
var sensitiveValuePrefixes = []string{
	"clss-", // Session token
}

// sensitiveKeyPatterns mark attributes that are fully redacted.
var sensitiveKeyPatterns = []string{
	"value",
	"payload",
	"session",
	"token",
	"password",
	"secret",
}

const redactedValue = "***REDACTED***"

// redactSensitive masks token-like values and redacts attributes whose name
// suggests stored data or credentials. Non-string attributes with a
// sensitive name (for example a json.RawMessage value) are redacted too.
func redactSensitive(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, maskValue(strVal, prefix))
			}
		}
		if strVal == "" {
			return a
		}
	}

	if IsSensitiveKey(a.Key) {
		switch a.Value.Kind() {
		case slog.KindString, slog.KindAny:
			return slog.String(a.Key, redactedValue)
		}
	}
	return a
}

// maskValue keeps the prefix and a three character hint at each end.
func maskValue(value, prefix string) string {
	body := value[len(prefix):]
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks value if it carries a sensitive prefix.
func RedactString(value string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return maskValue(value, prefix)
		}
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be sensitive.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
