// Package worktree implements uncommitted-status reporting and the
// prefix-matching amend flow: the one path in the core that rewrites the
// linear branch's first-parent history.
package worktree

import (
	"context"
	"fmt"
	"strings"
)

// Executor is the subset of gitexec.Invoker worktree operations need.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteRaw(ctx context.Context, args ...string) (string, error)
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
	ExecuteWithEnv(ctx context.Context, env map[string]string, args ...string) (string, error)
}

// FileStatus is one entry from `git status --porcelain -z`: metadata only,
// no diff content (diffs are fetched lazily via Diff).
type FileStatus struct {
	Path           string
	StagedStatus   byte // 'M', 'A', 'D', 'R', ' ' (none)
	UnstagedStatus byte // 'M', 'D', '?' (untracked), ' ' (none)
}

// Staged reports whether the entry has any staged change, treating '?'
// (untracked) as not staged.
func (f FileStatus) Staged() bool {
	return f.StagedStatus != ' ' && f.StagedStatus != '?'
}

// Status parses the NUL-delimited output of `git status --porcelain -z`
// into per-file metadata, deliberately reading raw (untrimmed) stdout —
// trimming would corrupt a trailing empty path field on rename entries.
func Status(ctx context.Context, git Executor) ([]FileStatus, error) {
	out, err := git.ExecuteRaw(ctx, "status", "--porcelain", "-z")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	var entries []FileStatus
	parts := strings.Split(out, "\x00")
	for i := 0; i < len(parts); i++ {
		entry := parts[i]
		if len(entry) < 3 {
			continue
		}
		staged := entry[0]
		unstaged := entry[1]
		path := entry[3:]

		// Renames ("R ") carry an extra NUL-separated "from" path segment
		// before the next real entry; skip it so it isn't parsed as its
		// own status line.
		if staged == 'R' || unstaged == 'R' {
			i++
		}

		entries = append(entries, FileStatus{Path: path, StagedStatus: staged, UnstagedStatus: unstaged})
	}
	return entries, nil
}

// Diff fetches the unified diff for path against HEAD (covers both staged
// and unstaged changes), fetched lazily per path rather than eagerly for
// every status entry.
func Diff(ctx context.Context, git Executor, path string) (string, error) {
	out, err := git.Execute(ctx, "diff", "HEAD", "-U3", "--", path)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return out, nil
}

// commitMeta is the subset of a commit's identity needed to replay it
// onto a new parent chain while preserving authorship.
type commitMeta struct {
	hash            string
	tree            string
	message         string
	authorName      string
	authorEmail     string
	authorDate      string
	committerName   string
	committerEmail  string
}

const commitMetaFormat = "--format=%H%x1f%T%x1f%an%x1f%ae%x1f%ad%x1f%cn%x1f%ce%x1e"

func parseCommitMeta(ctx context.Context, git Executor, hash string) (commitMeta, error) {
	out, err := git.Execute(ctx, "log", "-1", "--date=unix", commitMetaFormat, hash)
	if err != nil {
		return commitMeta{}, fmt.Errorf("read commit metadata for %s: %w", hash, err)
	}
	fields := strings.SplitN(strings.TrimSuffix(strings.TrimSpace(out), "\x1e"), "\x1f", 7)
	if len(fields) != 7 {
		return commitMeta{}, fmt.Errorf("unexpected commit metadata shape for %s", hash)
	}
	message, err := git.Execute(ctx, "log", "-1", "--format=%B", hash)
	if err != nil {
		return commitMeta{}, fmt.Errorf("read commit message for %s: %w", hash, err)
	}
	return commitMeta{
		hash:           fields[0],
		tree:           fields[1],
		message:        message,
		authorName:     fields[2],
		authorEmail:    fields[3],
		authorDate:     fields[4],
		committerName:  fields[5],
		committerEmail: fields[6],
	}, nil
}

// AmendParams describes an amend-and-drop operation against the current
// branch's linear first-parent history.
type AmendParams struct {
	// DropHashes are commits to remove entirely from history.
	DropHashes []string
	// TargetHash is the commit whose tree is replaced with the currently
	// staged index content (via `git write-tree`).
	TargetHash string
}

// Amend verifies that every hash in DropHashes and TargetHash exists in
// HEAD's first-parent history, then rebuilds that history with the
// dropped commits removed and TargetHash's content replaced by the
// currently staged changes, preserving every other commit's message and
// authorship exactly. Returns the new HEAD hash. This is the only
// operation in the core that rewrites refs/heads/<linear-branch>.
func Amend(ctx context.Context, git Executor, p AmendParams) (string, error) {
	branch, err := git.Execute(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("amend requires HEAD to be on a branch: %w", err)
	}

	history, err := git.ExecuteLines(ctx, "rev-list", "--first-parent", "--reverse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("read first-parent history: %w", err)
	}

	present := make(map[string]struct{}, len(history))
	for _, h := range history {
		present[h] = struct{}{}
	}
	drop := make(map[string]struct{}, len(p.DropHashes))
	for _, h := range p.DropHashes {
		if _, ok := present[h]; !ok {
			return "", fmt.Errorf("commit %s is not in HEAD's first-parent history", h)
		}
		drop[h] = struct{}{}
	}
	if _, ok := present[p.TargetHash]; !ok {
		return "", fmt.Errorf("target commit %s is not in HEAD's first-parent history", p.TargetHash)
	}
	if _, dropped := drop[p.TargetHash]; dropped {
		return "", fmt.Errorf("target commit %s cannot also be in DropHashes", p.TargetHash)
	}

	indexTree, err := git.Execute(ctx, "write-tree")
	if err != nil {
		return "", fmt.Errorf("write-tree for staged changes: %w", err)
	}

	var newParent string
	for _, hash := range history {
		if _, skip := drop[hash]; skip {
			continue
		}

		meta, err := parseCommitMeta(ctx, git, hash)
		if err != nil {
			return "", err
		}

		tree := meta.tree
		if hash == p.TargetHash {
			tree = indexTree
		}

		args := []string{"commit-tree", tree, "-m", meta.message}
		if newParent != "" {
			args = append(args, "-p", newParent)
		}
		env := map[string]string{
			"GIT_AUTHOR_NAME":     meta.authorName,
			"GIT_AUTHOR_EMAIL":    meta.authorEmail,
			"GIT_AUTHOR_DATE":     meta.authorDate,
			"GIT_COMMITTER_NAME":  meta.committerName,
			"GIT_COMMITTER_EMAIL": meta.committerEmail,
		}
		out, err := git.ExecuteWithEnv(ctx, env, args...)
		if err != nil {
			return "", fmt.Errorf("replay commit %s: %w", hash, err)
		}
		newParent = strings.TrimSpace(out)
	}

	if newParent == "" {
		return "", fmt.Errorf("amend would drop every commit in history")
	}

	if _, err := git.Execute(ctx, "update-ref", "refs/heads/"+branch, newParent); err != nil {
		return "", fmt.Errorf("update branch %s: %w", branch, err)
	}
	return newParent, nil
}
