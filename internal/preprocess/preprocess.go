// Package preprocess normalizes raw extracted text before chunking.
package preprocess

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// Runs of horizontal whitespace inside a line.
	inlineSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

	// Lines that only carry page numbering: "12", "Page 3", "Page 3 of 9", "- 4 -", "3/9".
	// Matched after leading whitespace is trimmed, since \s covers ASCII only.
	pagination = regexp.MustCompile(`(?i)^(?:page\s+\d+(?:\s+of\s+\d+)?|\d+|-\s*\d+\s*-|\d+\s*/\s*\d+)\s*$`)

	// Three or more blank lines.
	blankRuns = regexp.MustCompile(`\n{4,}`)
)

// Text returns the normalized form of raw. It never fails and
// Text(Text(s)) == Text(s) for every s.
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = inlineSpace.ReplaceAllString(line, " ")
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line != "" && pagination.MatchString(strings.TrimLeftFunc(line, unicode.IsSpace)) {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.Join(kept, "\n")

	s = rejoinBrokenLines(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// rejoinBrokenLines replaces a newline with a space when it sits between a
// lowercase letter or comma and a lowercase letter, which is how hard-wrapped
// sentences look after extraction.
func rejoinBrokenLines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	prev := rune(0)
	for i, r := range s {
		if r == '\n' && (unicode.IsLower(prev) || prev == ',') {
			next, _ := utf8.DecodeRuneInString(s[i+1:])
			if unicode.IsLower(next) {
				b.WriteByte(' ')
				prev = ' '
				continue
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
