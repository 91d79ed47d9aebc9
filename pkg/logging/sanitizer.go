package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxStatementLogLength is the maximum length of a SQL statement to log
	MaxStatementLogLength = 200
	// MaxOutputLogLength is the maximum length of captured process output to log
	MaxOutputLogLength = 2000
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx inside JDBC URLs and DSNs (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host inside URLs
	userInfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)

	// token-ish query parameters on the source URL
	tokenParamPattern = regexp.MustCompile(`(?i)([?&](?:(?:access_)?token|sig|signature|api[_-]?key|key))=[^&\s]+`)
)

// SanitizeConnectionString removes credentials from a JDBC URL or ledger DSN.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	return sanitized
}

// SanitizeURL strips user info and signed-URL tokens from a source URL.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	sanitized := userInfoPattern.ReplaceAllString(raw, "://"+RedactedText+"@")
	return tokenParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// SanitizeCommand returns a copy of a command line safe to log:
// the value following a "-p" flag (beeline password) is redacted and
// every argument has connection-string credentials removed.
func SanitizeCommand(cmd []string) []string {
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		if i > 0 && cmd[i-1] == "-p" {
			out[i] = RedactedText
			continue
		}
		out[i] = SanitizeConnectionString(arg)
	}
	return out
}

// SanitizeStatement collapses whitespace and truncates a SQL statement for logging.
func SanitizeStatement(stmt string) string {
	if stmt == "" {
		return ""
	}

	collapsed := strings.Join(strings.Fields(stmt), " ")
	collapsed = passwordPattern.ReplaceAllString(collapsed, "${1}="+RedactedText)
	return TruncateString(collapsed, MaxStatementLogLength)
}

// SanitizeOutput trims and truncates captured stdout/stderr for logging.
func SanitizeOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return TruncateString(s, MaxOutputLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
