package parsers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 64 * 1024 // 64KB
	maxQueryLen   = 8 * 1024  // 8KB per extracted statement
)

var (
	fenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	selectRe = regexp.MustCompile(`(?is)\bSELECT\b.+?;`)
)

// ExtractSQL pulls the first SELECT statement out of model output. Code
// fences are stripped; a statement without a terminator is closed with ';'.
// Output that holds no SELECT is returned trimmed so validation can reject it.
func ExtractSQL(text string) string {
	text = clamp(strings.TrimSpace(text), maxContentLen)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = strings.TrimSpace(strings.NewReplacer("```sql", "", "```", "").Replace(text))

	if m := selectRe.FindString(text); m != "" {
		return clamp(strings.TrimSpace(m), maxQueryLen)
	}
	if idx := indexFold(text, "SELECT"); idx >= 0 {
		stmt := strings.TrimSpace(text[idx:])
		return clamp(stmt, maxQueryLen-1) + ";"
	}
	return clamp(text, maxQueryLen)
}

// IsCannotAnswer reports an explicit refusal from the planner.
func IsCannotAnswer(plan string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(plan)), "CANNOT_ANSWER")
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToUpper(s), strings.ToUpper(substr))
}

// clamp cuts s to at most n bytes without splitting a rune.
func clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
