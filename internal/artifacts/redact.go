package artifacts

import "regexp"

// Redacted replaces every secret found in persisted text.
const Redacted = "[REDACTED]"

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{name: "Bearer token", re: regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.~+/]+=*`)},
	{name: "API key (sk-...)", re: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{name: "JWT token", re: regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_.+/=]+`)},
	{name: "AWS secret", re: regexp.MustCompile(`(?i)AWS_SECRET_ACCESS_KEY[=:]\s*["']?[A-Za-z0-9/+=]{40}["']?`)},
	{name: "Token env var", re: regexp.MustCompile(`[A-Z_]+_TOKEN[=:]\s*["']?[^\s"']+["']?`)},
	{name: "API key env var", re: regexp.MustCompile(`[A-Z_]+_API_KEY[=:]\s*["']?[^\s"']+["']?`)},
	{name: "GitHub token", re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
}

// Redact replaces known secret shapes in text. onRedact, if set, is called
// once per pattern that matched.
func Redact(text string, onRedact func(pattern string)) string {
	for _, p := range secretPatterns {
		if !p.re.MatchString(text) {
			continue
		}
		text = p.re.ReplaceAllLiteralString(text, Redacted)
		if onRedact != nil {
			onRedact(p.name)
		}
	}
	return text
}
