package parsers

import (
	"regexp"
	"strings"
)

// OffTaskReason names the way a plan drifted away from the schema.
type OffTaskReason string

const (
	ReasonWebSearch OffTaskReason = "web_search"
	ReasonGaming    OffTaskReason = "gaming_confusion"
	ReasonNotSQL    OffTaskReason = "not_sql"
)

// plans longer than this with no SQL vocabulary are treated as prose answers
const notSQLMinLen = 100

var webIndicators = []string{
	"based on the web",
	"according to",
	"search results",
	"i found",
	"from the web",
	"online sources",
	"wikipedia",
	"google",
	"based on my search",
}

var gamingRe = regexp.MustCompile(`(?i)\b(league of legends|lol champions|e-?sports?|games?|gaming|players?|teams?|tournaments?|sports?)\b`)

var sqlVocabRe = regexp.MustCompile(`(?i)\b(select|from)\b|cannot_answer`)

var sqlLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)

// DetectOffTask inspects a plan for signs the model answered from general
// knowledge instead of the schema. Web-search drift wins over gaming drift,
// which wins over a plain prose answer.
func DetectOffTask(plan string) (OffTaskReason, bool) {
	lower := strings.ToLower(plan)
	for _, ind := range webIndicators {
		if strings.Contains(lower, ind) {
			return ReasonWebSearch, true
		}
	}
	if gamingRe.MatchString(plan) {
		return ReasonGaming, true
	}
	if !sqlVocabRe.MatchString(plan) && len(strings.TrimSpace(plan)) > notSQLMinLen {
		return ReasonNotSQL, true
	}
	return "", false
}

// DetectOffTaskSQL runs DetectOffTask on query-model output with string
// literals removed, so WHERE Lead_Source = 'Google' is not read as a web
// search.
func DetectOffTaskSQL(text string) (OffTaskReason, bool) {
	return DetectOffTask(sqlLiteralRe.ReplaceAllString(text, "''"))
}
