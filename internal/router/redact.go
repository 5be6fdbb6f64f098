package router

import "regexp"

// Redactor scrubs credentials from outbound chat replies.
type Redactor struct {
	patterns []*regexp.Regexp
}

var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AIza[A-Za-z0-9_-]{35}`),              // Google / Gemini API key
	regexp.MustCompile(`sk-or-v1-[a-f0-9]{32,}`),             // OpenRouter
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),              // OpenAI-style
	regexp.MustCompile(`xox[abpr]-[A-Za-z0-9-]+`),            // Slack tokens
	regexp.MustCompile(`xapp-[A-Za-z0-9-]+`),                 // Slack app token
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),         // GitHub
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),                   // AWS access key
	regexp.MustCompile(`sk_(?:live|test)_[A-Za-z0-9]{16,}`), // Stripe

	regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
	regexp.MustCompile(`(?s)-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----.*?-----END (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s"'<>]+`),
}

const redactedPlaceholder = "[REDACTED]"

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// AddPatterns compiles and adds custom patterns. Nothing is added if any
// pattern fails to compile.
func (r *Redactor) AddPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return err
		}
		compiled = append(compiled, re)
	}
	r.patterns = append(r.patterns[:len(r.patterns):len(r.patterns)], compiled...)
	return nil
}

// Redact replaces every match with [REDACTED].
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// ContainsSensitive reports whether text matches any pattern.
func (r *Redactor) ContainsSensitive(text string) bool {
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
