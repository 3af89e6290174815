package grouper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/branch-deck/branchdeck/internal/domain"
)

// Grouper incrementally assigns commits to a branch prefix/issue-key
// group, preserving first-seen group order.
type Grouper struct {
	order   []string
	groups  map[string][]domain.Commit
	unassigned []domain.Commit
	count   int
}

// New creates an empty Grouper.
func New() *Grouper {
	return &Grouper{groups: make(map[string][]domain.Commit)}
}

// Add assigns commit to a group, by explicit "(prefix) message" syntax
// first, then by issue-key pattern, falling back to unassigned.
func (g *Grouper) Add(commit domain.Commit) {
	g.count++
	subject := commit.Subject

	if domain.HasBranchPrefix(subject) {
		closeParen := strings.IndexByte(subject, ')')
		if prefix := strings.TrimSpace(subject[1:closeParen]); prefix != "" {
			rest := subject[closeParen+1:]
			commit.StrippedSubject = strings.TrimLeft(rest, " \t")
			g.append(prefix, commit)
			return
		}
	}

	if issue := FindIssueNumber(subject); issue != "" {
		g.append(issue, commit)
		return
	}

	g.unassigned = append(g.unassigned, commit)
}

func (g *Grouper) append(key string, commit domain.Commit) {
	if _, exists := g.groups[key]; !exists {
		g.order = append(g.order, key)
	}
	g.groups[key] = append(g.groups[key], commit)
}

// Result is the outcome of Finish: ordered group names, their commits, and
// the leftover unassigned commits.
type Result struct {
	Order      []string
	Groups     map[string][]domain.Commit
	Unassigned []domain.Commit
}

// Finish returns the accumulated groups (in first-seen order) and the
// unassigned commits, logging a one-line summary.
func (g *Grouper) Finish() Result {
	summary := make([]string, 0, len(g.order))
	for _, key := range g.order {
		summary = append(summary, fmt.Sprintf("%s: %d", key, len(g.groups[key])))
	}
	slog.Default().Info("commit grouping completed",
		"branches", len(g.order), "unassigned", len(g.unassigned), "branch_details", summary)

	return Result{Order: g.order, Groups: g.groups, Unassigned: g.unassigned}
}
