// Package security masks credentials in text that leaves the process, such
// as provider error bodies and transport errors.
package security

import (
	"regexp"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// SecretRedactor masks sensitive information in strings using common patterns
// and an explicit list of known secrets.
type SecretRedactor struct {
	patterns []*regexp.Regexp

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewSecretRedactor creates a redactor with patterns for the credentials the
// model providers issue.
func NewSecretRedactor() *SecretRedactor {
	return &SecretRedactor{
		known: make(map[string]struct{}),
		patterns: []*regexp.Regexp{
			// key=value and "key": "value" forms; the value is group 1
			regexp.MustCompile(`(?i)(?:api[_-]?key|access[_-]?token|auth[_-]?token|secret|password|x-api-key)["']?\s*[:=]\s*["']?([a-zA-Z0-9_\-\.]{8,})`),

			// Bearer tokens
			regexp.MustCompile(`(?i)Bearer\s+([a-zA-Z0-9_\-\.]{10,256})`),

			// OpenAI, Anthropic and DashScope keys (sk-..., sk-ant-...)
			regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{16,}`),

			// Google API keys, also as a ?key= query parameter
			regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
			regexp.MustCompile(`([?&]key=)[^&\s"']+`),

			// JWT tokens
			regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.(?:eyJ[a-zA-Z0-9_-]+)?\.[a-zA-Z0-9_-]{20,}`),
		},
	}
}

// AddSecret registers a literal value that must never appear in output.
// Values shorter than 8 characters are ignored.
func (r *SecretRedactor) AddSecret(secret string) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 8 {
		return
	}
	r.mu.Lock()
	r.known[secret] = struct{}{}
	r.mu.Unlock()
}

// Redact masks all detected secrets in text.
func (r *SecretRedactor) Redact(text string) string {
	if text == "" {
		return ""
	}

	r.mu.RLock()
	for secret := range r.known {
		text = strings.ReplaceAll(text, secret, redacted)
	}
	r.mu.RUnlock()

	for _, pattern := range r.patterns {
		if pattern.NumSubexp() == 0 {
			text = pattern.ReplaceAllString(text, redacted)
			continue
		}
		text = pattern.ReplaceAllStringFunc(text, func(match string) string {
			return redactGroup(pattern, match)
		})
	}
	return text
}

// redactGroup replaces capture group 1 of match, keeping the label around it.
// The ?key= pattern captures the prefix instead, so its tail is replaced.
func redactGroup(pattern *regexp.Regexp, match string) string {
	loc := pattern.FindStringSubmatchIndex(match)
	if len(loc) < 4 || loc[2] < 0 {
		return redacted
	}
	group := match[loc[2]:loc[3]]
	if strings.HasSuffix(group, "key=") {
		return group + redacted
	}
	return match[:loc[2]] + redacted + match[loc[3]:]
}

var defaultRedactor = NewSecretRedactor()

// Redact masks secrets in text using the process-wide redactor.
func Redact(text string) string {
	return defaultRedactor.Redact(text)
}

// AddSecret registers a literal secret with the process-wide redactor.
func AddSecret(secret string) {
	defaultRedactor.AddSecret(secret)
}
