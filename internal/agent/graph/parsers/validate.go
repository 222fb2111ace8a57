package parsers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// ValidationKind separates structural rejections from unknown names.
type ValidationKind string

const (
	KindStructural    ValidationKind = "structural"
	KindUnknownTable  ValidationKind = "unknown_table"
	KindUnknownColumn ValidationKind = "unknown_column"
)

// ValidationError explains why a query was rejected. Suggestions holds the
// nearest known names for KindUnknownTable and KindUnknownColumn.
type ValidationError struct {
	Kind        ValidationKind
	Message     string
	Unknown     []string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func structural(msg string) *ValidationError {
	return &ValidationError{Kind: KindStructural, Message: msg}
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokQuoted
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "IS": true, "NULL": true, "LIKE": true,
	"GLOB": true, "BETWEEN": true, "GROUP": true, "BY": true, "ORDER": true,
	"ASC": true, "DESC": true, "LIMIT": true, "OFFSET": true, "HAVING": true,
	"AS": true, "DISTINCT": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "ON": true, "ALL": true, "TRUE": true,
	"FALSE": true, "COLLATE": true, "NOCASE": true, "ESCAPE": true,
	"WITH": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"OUTER": true, "CROSS": true, "FULL": true, "NATURAL": true, "USING": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "EXISTS": true,
	"CAST": true, "INTEGER": true, "REAL": true, "TEXT": true, "NULLS": true,
	"FIRST": true, "LAST": true,
}

// ValidateQuery checks a statement against the schema: a single SELECT over
// one known table, no CTE, no subquery, no JOIN, and only known columns.
// Function names and aliases are not treated as column references.
func ValidateQuery(query string, s *model.Schema) error {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, "; \t\n"))
	if q == "" {
		return structural("Empty query.")
	}
	if len(q) > maxQueryLen {
		return structural("Query is too long.")
	}

	toks, verr := tokenize(q)
	if verr != nil {
		return verr
	}
	if len(toks) == 0 {
		return structural("Empty query.")
	}

	for _, t := range toks {
		if t.kind == tokPunct && t.text == ";" {
			return structural("Only a single SELECT statement is allowed.")
		}
	}

	first := keyword(toks[0])
	switch {
	case first == "WITH":
		return structural("CTEs (WITH clauses) are not allowed. Use simple SELECT.")
	case first != "SELECT":
		return structural("Only SELECT statements are allowed.")
	}

	selects := 0
	for _, t := range toks {
		switch keyword(t) {
		case "SELECT":
			selects++
		case "WITH":
			return structural("CTEs (WITH clauses) are not allowed. Use simple SELECT.")
		case "JOIN":
			return structural(fmt.Sprintf("JOINs are not allowed. Only the %s table is available.",
				strings.Join(s.TableNames(), ", ")))
		case "UNION", "INTERSECT", "EXCEPT":
			return structural("Compound SELECT statements are not allowed.")
		}
	}
	if selects > 1 {
		return structural("Subqueries are not allowed. Use simple SELECT.")
	}

	fromAt := -1
	for i, t := range toks {
		if keyword(t) == "FROM" {
			fromAt = i
			break
		}
	}
	if fromAt < 0 || fromAt+1 >= len(toks) || !isName(toks[fromAt+1]) {
		return structural("Query must select FROM a known table.")
	}
	tableName := toks[fromAt+1].text
	table, ok := s.Table(tableName)
	if !ok {
		return &ValidationError{
			Kind:        KindUnknownTable,
			Message:     fmt.Sprintf("Invalid table %q. Known tables: %s.", tableName, strings.Join(s.TableNames(), ", ")),
			Unknown:     []string{tableName},
			Suggestions: Suggest(tableName, s.TableNames(), 3),
		}
	}
	if next := fromAt + 2; next < len(toks) && toks[next].kind == tokPunct && toks[next].text == "," {
		return structural(fmt.Sprintf("JOINs are not allowed. Only the %s table is available.", table.Name))
	}

	aliases := map[string]bool{}
	for i, t := range toks {
		if !isName(t) {
			continue
		}
		if i > 0 && keyword(toks[i-1]) == "AS" {
			aliases[strings.ToLower(t.text)] = true
		}
	}
	for _, i := range implicitAliases(toks[:fromAt]) {
		aliases[strings.ToLower(toks[i].text)] = true
	}
	// FROM leadscored l
	if alias := fromAt + 2; alias < len(toks) && toks[alias].kind == tokIdent && keyword(toks[alias]) == "" {
		aliases[strings.ToLower(toks[alias].text)] = true
	}
	literals := valuePositions(toks)

	var unknown []string
	seen := map[string]bool{}
	for i, t := range toks {
		if !isName(t) || i == fromAt+1 {
			continue
		}
		if t.kind == tokIdent && keyword(t) != "" {
			continue
		}
		if i+1 < len(toks) && isPunct(toks[i+1], "(") {
			continue // function call
		}
		if i+1 < len(toks) && isPunct(toks[i+1], ".") {
			continue // table qualifier
		}
		lower := strings.ToLower(t.text)
		if aliases[lower] || strings.EqualFold(t.text, table.Name) {
			continue
		}
		if _, ok := table.Column(t.text); ok {
			continue
		}
		if t.kind == tokQuoted && literals[i] {
			continue // "Champions" compared against a column is a string
		}
		if !seen[lower] {
			seen[lower] = true
			unknown = append(unknown, t.text)
		}
	}
	if len(unknown) > 0 {
		var suggestions []string
		for _, u := range unknown {
			for _, c := range Suggest(u, table.ColumnNames(), 3) {
				if !contains(suggestions, c) {
					suggestions = append(suggestions, c)
				}
			}
		}
		return &ValidationError{
			Kind:        KindUnknownColumn,
			Message:     fmt.Sprintf("Unknown column(s) %s in table %s.", strings.Join(unknown, ", "), table.Name),
			Unknown:     unknown,
			Suggestions: suggestions,
		}
	}
	return nil
}

func tokenize(q string) ([]token, *ValidationError) {
	var toks []token
	rs := []rune(q)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '\'':
			j := i + 1
			for ; j < len(rs); j++ {
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						j++
						continue
					}
					break
				}
			}
			if j >= len(rs) {
				return nil, structural("Unterminated string literal.")
			}
			toks = append(toks, token{kind: tokString, text: string(rs[i+1 : j])})
			i = j + 1
		case r == '"' || r == '`' || r == '[':
			closer := r
			if r == '[' {
				closer = ']'
			}
			j := i + 1
			for j < len(rs) && rs[j] != closer {
				j++
			}
			if j >= len(rs) {
				return nil, structural("Unterminated quoted identifier.")
			}
			toks = append(toks, token{kind: tokQuoted, text: string(rs[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			if j < len(rs) && (rs[j] == 'e' || rs[j] == 'E') {
				k := j + 1
				if k < len(rs) && (rs[k] == '+' || rs[k] == '-') {
					k++
				}
				if k < len(rs) && unicode.IsDigit(rs[k]) {
					for k < len(rs) && unicode.IsDigit(rs[k]) {
						k++
					}
					j = k
				}
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[i:j])})
			i = j
		default:
			toks = append(toks, token{kind: tokPunct, text: string(r)})
			i++
		}
	}
	return toks, nil
}

// implicitAliases returns the positions in a select list of bare names
// that follow a complete expression and end a column: "Segment seg" and
// "COUNT(*) cnt" before a comma or FROM.
func implicitAliases(list []token) []int {
	var out []int
	depth := 0
	for i, t := range list {
		switch {
		case isPunct(t, "("):
			depth++
		case isPunct(t, ")"):
			depth--
		}
		if depth != 0 || i == 0 || t.kind != tokIdent || keyword(t) != "" {
			continue
		}
		if i+1 < len(list) && !isPunct(list[i+1], ",") {
			continue
		}
		if endsExpression(list[i-1]) {
			out = append(out, i)
		}
	}
	return out
}

func endsExpression(t token) bool {
	switch t.kind {
	case tokQuoted, tokString, tokNumber:
		return true
	case tokIdent:
		switch keyword(t) {
		case "", "END", "NULL", "TRUE", "FALSE":
			return true
		}
		return false
	}
	return isPunct(t, ")") || isPunct(t, "*")
}

// valuePositions marks tokens on the value side of a comparison, LIKE or
// GLOB, or inside an IN list.
func valuePositions(toks []token) map[int]bool {
	out := map[int]bool{}
	inList := 0 // paren depth of the open IN list, 0 when none
	depth := 0
	for i, t := range toks {
		switch {
		case isPunct(t, "("):
			depth++
			if inList == 0 && i > 0 && keyword(toks[i-1]) == "IN" {
				inList = depth
			}
			continue
		case isPunct(t, ")"):
			if depth == inList {
				inList = 0
			}
			depth--
			continue
		}
		if inList != 0 && depth == inList {
			out[i] = true
			continue
		}
		if i == 0 {
			continue
		}
		prev := toks[i-1]
		switch {
		case isPunct(prev, "="), isPunct(prev, "<"), isPunct(prev, ">"):
			out[i] = true
		case keyword(prev) == "LIKE", keyword(prev) == "GLOB":
			out[i] = true
		}
	}
	return out
}

func keyword(t token) string {
	if t.kind != tokIdent {
		return ""
	}
	up := strings.ToUpper(t.text)
	if sqlKeywords[up] {
		return up
	}
	return ""
}

func isName(t token) bool {
	return t.kind == tokIdent || t.kind == tokQuoted
}

func isPunct(t token, p string) bool {
	return t.kind == tokPunct && t.text == p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
