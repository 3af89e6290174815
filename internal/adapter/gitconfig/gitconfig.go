// Package gitconfig reads branchdeck's small set of read-only git config
// keys and environment-driven switches. There is no on-disk preferences
// file here; Git itself is the only durable config source.
package gitconfig

import (
	"context"
	"fmt"
	"os"
)

// Executor is the subset of gitexec.Invoker the Manager needs.
type Executor interface {
	ExecuteWithStatus(ctx context.Context, args ...string) (string, int, error)
}

// Manager reads branchdeck.* git config keys for one repository.
type Manager struct {
	git Executor
}

// New creates a Manager for the given git executor.
func New(git Executor) *Manager {
	return &Manager{git: git}
}

// readConfig looks up a single config key, distinguishing "key not set"
// (exit 1, not an error) from "not a repository" (propagated). Outside a
// repository `git config` still exits 1, so the repository is checked
// first with `git rev-parse --git-dir`; any other non-zero exit of the
// lookup is propagated as well.
func (m *Manager) readConfig(ctx context.Context, key string) (string, error) {
	if out, code, err := m.git.ExecuteWithStatus(ctx, "rev-parse", "--git-dir"); err != nil {
		return "", err
	} else if code != 0 {
		return "", fmt.Errorf("not a git repository: %s", out)
	}
	out, code, err := m.git.ExecuteWithStatus(ctx, "config", key)
	if code == 1 {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("git config %s: exit %d: %s", key, code, out)
	}
	return out, nil
}

// BranchPrefix reads "branchdeck.branchPrefix" with git's usual config
// precedence (repository, then global, then system),
// returning "" if the key is unset rather than an error (config key not
// found is a normal, expected case for repos that haven't opted in).
func (m *Manager) BranchPrefix(ctx context.Context) (string, error) {
	return m.readConfig(ctx, "branchdeck.branchPrefix")
}

// IssueNavigationRegex reads "branchdeck.issueNavigationRegex".
func (m *Manager) IssueNavigationRegex(ctx context.Context) (string, error) {
	return m.readConfig(ctx, "branchdeck.issueNavigationRegex")
}

// IssueNavigationLink reads "branchdeck.issueNavigationLink".
func (m *Manager) IssueNavigationLink(ctx context.Context) (string, error) {
	return m.readConfig(ctx, "branchdeck.issueNavigationLink")
}

// DetectionStrategy reflects the BRANCH_DECK_FULL_DETECTION env switch:
// presence (any value, including empty) selects the All-tiers strategy,
// absence selects the cheap Rebase-only strategy.
type DetectionStrategy int

const (
	StrategyRebase DetectionStrategy = iota
	StrategyAll
)

func (s DetectionStrategy) String() string {
	if s == StrategyAll {
		return "all"
	}
	return "rebase"
}

// ReadDetectionStrategy inspects the process environment.
func ReadDetectionStrategy() DetectionStrategy {
	if _, ok := os.LookupEnv("BRANCH_DECK_FULL_DETECTION"); ok {
		return StrategyAll
	}
	return StrategyRebase
}
