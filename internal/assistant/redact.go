package assistant

import (
	"regexp"
	"strings"
)

const (
	redactedName  = "[REDACTED NAME]"
	redactedEmail = "[REDACTED EMAIL]"
	redactedID    = "[REDACTED ID]"
	redacted      = "[REDACTED]"
)

// identifierPatterns catch identifiers the caller did not name: email
// addresses, ten digit phone numbers and mixed digit/letter record numbers.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	regexp.MustCompile(`\b[0-9]{2,}[A-Z]{2,}[0-9A-Z]{2,}\b`),
}

// Identifiers are the caller's own identifying values, removed verbatim
// (case-insensitive) before any generic pattern runs.
type Identifiers struct {
	FullName  string
	Email     string
	PatientID string
}

func Redact(input string, ids Identifiers) string {
	out := input
	out = replaceLiteral(out, ids.FullName, redactedName)
	out = replaceLiteral(out, ids.Email, redactedEmail)
	out = replaceLiteral(out, ids.PatientID, redactedID)

	for _, re := range identifierPatterns {
		out = re.ReplaceAllLiteralString(out, redacted)
	}
	return strings.TrimSpace(out)
}

func replaceLiteral(s, value, repl string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return s
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(value))
	return re.ReplaceAllLiteralString(s, repl)
}
