package engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnsafeSQL is returned when generated SQL is not a single read-only statement.
var ErrUnsafeSQL = errors.New("generated SQL is not a read-only query")

// writeKeywords never appear in a read-only query outside quoted text.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true, "ATTACH": true, "DETACH": true,
	"PRAGMA": true, "VACUUM": true, "REINDEX": true, "COPY": true,
}

// GuardReadOnly accepts a single statement whose main verb is SELECT. A
// leading WITH clause must feed a SELECT, and no write keyword may appear
// anywhere outside quoted text. Comments are ignored.
func GuardReadOnly(sql string) error {
	stripped, statements := scanSQL(sql)
	if statements > 1 {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
	}
	words := sqlWords(stripped)
	if len(words) == 0 {
		return fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}
	lead := words[0].text
	if lead != "SELECT" && lead != "WITH" {
		return fmt.Errorf("%w: starts with %s", ErrUnsafeSQL, lead)
	}
	for _, w := range words {
		if writeKeywords[w.text] {
			return fmt.Errorf("%w: contains %s", ErrUnsafeSQL, w.text)
		}
	}
	if lead == "WITH" {
		switch verb := mainVerb(words); verb {
		case "SELECT", "VALUES":
		case "":
			return fmt.Errorf("%w: WITH clause without a SELECT", ErrUnsafeSQL)
		default:
			return fmt.Errorf("%w: WITH clause feeds %s", ErrUnsafeSQL, verb)
		}
	}
	return nil
}

type sqlWord struct {
	text  string
	depth int
}

// sqlWords splits unquoted identifiers and keywords out of s, upper-cased and
// tagged with their parenthesis depth.
func sqlWords(s string) []sqlWord {
	var (
		words []sqlWord
		depth int
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			quote := r
			for i++; i < len(runes) && runes[i] != quote; i++ {
			}
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case isWordRune(r):
			start := i
			for i+1 < len(runes) && isWordRune(runes[i+1]) {
				i++
			}
			words = append(words, sqlWord{text: strings.ToUpper(string(runes[start : i+1])), depth: depth})
		}
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// mainVerb finds the statement verb that follows the common table
// expressions of a WITH clause.
func mainVerb(words []sqlWord) string {
	for _, w := range words[1:] {
		if w.depth != 0 {
			continue
		}
		switch w.text {
		case "SELECT", "VALUES", "INSERT", "UPDATE", "DELETE", "REPLACE", "MERGE":
			return w.text
		}
	}
	return ""
}

// scanSQL removes comments and counts statements separated by semicolons
// outside quotes. A trailing semicolon does not start a new statement.
func scanSQL(sql string) (string, int) {
	var (
		out        strings.Builder
		statements int
		pending    bool
	)
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			out.WriteRune(' ')
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			out.WriteRune(' ')
		case r == '\'' || r == '"':
			quote := r
			out.WriteRune(r)
			for i++; i < len(runes); i++ {
				out.WriteRune(runes[i])
				if runes[i] == quote {
					if i+1 < len(runes) && runes[i+1] == quote {
						i++
						out.WriteRune(runes[i])
						continue
					}
					break
				}
			}
			pending = true
		case r == ';':
			if pending {
				statements++
				pending = false
			}
			out.WriteRune(' ')
		default:
			if !unicode.IsSpace(r) {
				pending = true
			}
			out.WriteRune(r)
		}
	}
	if pending {
		statements++
	}
	return out.String(), statements
}
