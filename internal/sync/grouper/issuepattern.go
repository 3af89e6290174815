// Package grouper implements commit grouping: parenthesized-prefix or
// issue-key detection, via a byte-level scanner rather than a regex, for
// performance and because it never scans past the first newline.
package grouper

import "bytes"

// skipBracketPrefix skips a leading "[category] " prefix, returning the new
// scan position, or -1 if a newline is encountered before the bracket
// closes (meaning there's no valid prefix on this subject line).
func skipBracketPrefix(b []byte, i int) int {
	n := len(b)
	if i >= n || b[i] != '[' {
		return i
	}
	i++
	rest := b[i:]
	closePos := bytes.IndexByte(rest, ']')
	nlPos := bytes.IndexByte(rest, '\n')
	if nlPos >= 0 && (closePos < 0 || closePos > nlPos) {
		return -1
	}
	if closePos < 0 {
		return -1
	}
	i += closePos + 1
	for i < n && isSpaceByte(b[i]) {
		if b[i] == '\n' {
			return -1
		}
		i++
	}
	return i
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// skipSemanticPrefix skips a leading semantic-commit prefix like "fix:" or
// "feat(scope):", returning the new scan position, i unchanged when no
// well-formed prefix is present (including a scope missing its closing
// paren on this line), or -1 when the subject line ends right after the colon.
func skipSemanticPrefix(b []byte, i int) int {
	n := len(b)
	if i >= n || !isLowerAlpha(b[i]) {
		return i
	}
	typeStart := i
	for i < n && isLowerAlpha(b[i]) {
		i++
	}
	if i >= n || b[i] == '\n' {
		return typeStart
	}
	if b[i] == '(' {
		i++
		rest := b[i:]
		closePos := bytes.IndexByte(rest, ')')
		nlPos := bytes.IndexByte(rest, '\n')
		if nlPos >= 0 && (closePos < 0 || closePos > nlPos) {
			return typeStart
		}
		if closePos < 0 {
			return typeStart
		}
		i += closePos + 1
	}
	if i >= n || b[i] == '\n' {
		return typeStart
	}
	if b[i] == ':' {
		i++
		for i < n && isSpaceByte(b[i]) {
			if b[i] == '\n' {
				return -1
			}
			i++
		}
		return i
	}
	return typeStart
}

func isLowerAlpha(c byte) bool { return c >= 'a' && c <= 'z' }
func isUpperAlpha(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isAlnum(c byte) bool      { return isUpperAlpha(c) || isLowerAlpha(c) || isDigit(c) }

// extractIssueAt tries to match "UPPER(S)-digits" at position i, requiring a
// word boundary (end of string, newline, or non-alphanumeric) immediately
// after the digits. Returns (start, end, true) on match.
func extractIssueAt(b []byte, i int) (int, int, bool) {
	n := len(b)
	if i >= n || b[i] == '\n' || !isUpperAlpha(b[i]) {
		return 0, 0, false
	}
	start := i
	for i < n && isUpperAlpha(b[i]) {
		i++
	}
	if i >= n || b[i] != '-' {
		return 0, 0, false
	}
	i++
	if i >= n || !isDigit(b[i]) {
		return 0, 0, false
	}
	for i < n && isDigit(b[i]) {
		i++
	}
	if i >= n || b[i] == '\n' || !isAlnum(b[i]) {
		return start, i, true
	}
	return 0, 0, false
}

// FindIssueRange returns the byte range of the first issue key
// (e.g. "ABC-123") found on the subject line of text, after skipping an
// optional [category] prefix and/or semantic-commit prefix. Returns
// ok == false if no issue key is found.
func FindIssueRange(text string) (start, end int, ok bool) {
	b := []byte(text)
	if len(b) < 3 {
		return 0, 0, false
	}
	i := skipBracketPrefix(b, 0)
	if i < 0 {
		return 0, 0, false
	}
	i = skipSemanticPrefix(b, i)
	if i < 0 {
		return 0, 0, false
	}
	s, e, matched := extractIssueAt(b, i)
	return s, e, matched
}

// FindIssueNumber returns the first issue key found in text's subject line,
// or "" if none.
func FindIssueNumber(text string) string {
	s, e, ok := FindIssueRange(text)
	if !ok {
		return ""
	}
	return text[s:e]
}
