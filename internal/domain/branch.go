package domain

import (
	"fmt"
	"strings"
)

// ToFinalBranchName builds the virtual branch ref name "{prefix}/virtual/{name}"
// from a branch prefix and a group name: trim trailing slashes/whitespace
// on both inputs, replace git-ref-hostile characters with hyphens,
// collapse consecutive hyphens, and trim leading/trailing separators.
func ToFinalBranchName(branchPrefix, branchName string) (string, error) {
	prefix := strings.Trim(strings.TrimRight(branchPrefix, "/"), " \t\n")
	if prefix == "" {
		return "", fmt.Errorf("branch prefix cannot be blank")
	}
	name := strings.Trim(strings.TrimRight(branchName, "/"), " \t\n")
	if name == "" {
		return "", fmt.Errorf("branch name cannot be blank")
	}
	return prefix + "/virtual/" + SanitizeBranchName(name), nil
}

// ExtractBranchNameFromFinal extracts the group name from a full virtual
// branch ref, e.g. "user/virtual/feature-auth" -> "feature-auth".
func ExtractBranchNameFromFinal(fullBranchName, branchPrefix string) (string, bool) {
	prefix := strings.TrimRight(branchPrefix, "/") + "/virtual/"
	return strings.CutPrefix(fullBranchName, prefix)
}

var branchNameReplacer = strings.NewReplacer(
	" ", "-",
	"~", "-",
	"^", "-",
	":", "-",
	"?", "-",
	"*", "-",
	"[", "-",
	"]", "-",
	"\\", "-",
)

// SanitizeBranchName makes name valid as a git reference component.
func SanitizeBranchName(name string) string {
	replaced := branchNameReplacer.Replace(name)
	replaced = strings.Trim(replaced, ".")
	replaced = strings.Trim(replaced, "/")

	var b strings.Builder
	b.Grow(len(replaced))
	lastWasHyphen := false
	for _, r := range replaced {
		if r == '-' {
			if lastWasHyphen {
				continue
			}
			lastWasHyphen = true
		} else {
			lastWasHyphen = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

// HasBranchPrefix reports whether subject begins with a non-empty
// parenthesized group prefix, e.g. "(feature) add login".
func HasBranchPrefix(subject string) bool {
	if !strings.HasPrefix(subject, "(") {
		return false
	}
	closeParen := strings.IndexByte(subject, ')')
	return closeParen > 1
}
