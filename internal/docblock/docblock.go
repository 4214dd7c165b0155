// Package docblock tokenizes PHP doc comments into tags and turns raw tags
// into typed records whose type references are resolved against a Context.
package docblock

import (
	"regexp"
	"strings"
)

// Location is where a tag starts in its source file.
type Location struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// RawTag is a single "@name body" entry, before interpretation.
type RawTag struct {
	Name     string
	Body     string
	Location Location
}

var tagStart = regexp.MustCompile(`^@([\w\-\\]+)(.*)$`)

// Tokenize splits a /** */ comment into its tags. startLine is the 1-based
// line on which the comment begins. Text before the first tag (the summary
// and description) is discarded. A tag's body runs until the next line that
// starts a new tag; continuation lines are joined with "\n".
func Tokenize(comment string, startLine int, file string) []RawTag {
	lines := commentLines(comment)

	var (
		tags    []RawTag
		current *RawTag
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		tags = append(tags, *current)
		current = nil
		body = nil
	}

	for i, line := range lines {
		if m := tagStart.FindStringSubmatch(line); m != nil {
			flush()
			current = &RawTag{
				Name:     m[1],
				Location: Location{File: file, Line: startLine + i},
			}
			body = []string{strings.TrimSpace(m[2])}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	return tags
}

// commentLines strips the comment delimiters and the leading "*" gutter from
// every line. Line i of the result corresponds to line i of the comment.
func commentLines(comment string) []string {
	comment = strings.TrimSpace(comment)
	if !strings.HasPrefix(comment, "/**") {
		return nil
	}
	comment = strings.TrimPrefix(comment, "/**")
	comment = strings.TrimSuffix(comment, "*/")

	raw := strings.Split(strings.ReplaceAll(comment, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "*") {
			l = strings.TrimSpace(l[1:])
		}
		lines[i] = l
	}
	return lines
}

// splitFirst returns the first whitespace-delimited word of s and the
// trimmed remainder.
func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// splitType returns the leading type expression of s and the trimmed
// remainder. Whitespace inside <...>, (...) or {...} does not end the type,
// so "array<int, string> $x" yields "array<int, string>".
func splitType(s string) (string, string) {
	s = strings.TrimSpace(s)
	depth := 0
	for i, r := range s {
		switch r {
		case '<', '(', '{':
			depth++
		case '>', ')', '}':
			if depth > 0 {
				depth--
			}
		case ' ', '\t', '\n':
			if depth == 0 {
				return s[:i], strings.TrimSpace(s[i:])
			}
		}
	}
	return s, ""
}
