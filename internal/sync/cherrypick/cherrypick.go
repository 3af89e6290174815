// Package cherrypick implements the cherry-pick engine: a fast-path
// tree-id-reuse cherry-pick, falling back to `git merge-tree --write-tree`
// for an index-free three-way merge.
package cherrypick

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/domain/syncerror"
	"github.com/branch-deck/branchdeck/internal/sync/treecache"
)

// Executor is the subset of gitexec.Invoker cherry-pick needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteRaw(ctx context.Context, args ...string) (string, error)
	ExecuteWithEnv(ctx context.Context, env map[string]string, args ...string) (string, error)
}

// TreeCache is the tree-id cache dependency (concrete type, not an
// interface: it has exactly one caller-facing method and tests exercise it
// directly against real repositories).
type TreeCache = *treecache.Cache

// ConflictFileEntry describes one conflicting path reported by
// `merge-tree --write-tree -z`, with the base/ours/theirs blob oids
// present at each merge stage (1/2/3).
type ConflictFileEntry struct {
	Path  string
	Base  string
	Ours  string
	Theirs string
}

// MergeResult is the outcome of a merge-tree invocation: either a clean
// tree id, or a set of conflicting file entries.
type MergeResult struct {
	TreeID    string
	Conflicts []ConflictFileEntry
}

// FastCherryPick performs the fast-path (reuse original tree if parent
// trees match) or falls back to a merge-tree three-way merge, returning the
// resulting tree id for a new commit onto newParentOID, or the conflicting
// file entries if the merge could not be completed cleanly.
func FastCherryPick(ctx context.Context, git Executor, cache TreeCache, commitID, newParentOID string) (string, []ConflictFileEntry, error) {
	parentOut, err := git.Execute(ctx, "rev-parse", commitID+"^")
	if err != nil {
		return "", nil, fmt.Errorf("resolve parent of %s: %w", commitID, err)
	}
	originalParent := strings.TrimSpace(parentOut)

	originalParentTree, err := cache.GetTreeID(ctx, git, originalParent)
	if err != nil {
		return "", nil, err
	}
	newParentTree, err := cache.GetTreeID(ctx, git, newParentOID)
	if err != nil {
		return "", nil, err
	}

	if originalParentTree == newParentTree {
		cherryTree, err := cache.GetTreeID(ctx, git, commitID)
		if err != nil {
			return "", nil, err
		}
		return cherryTree, nil, nil
	}

	out, err := git.ExecuteRaw(ctx,
		"-c", "merge.conflictStyle=zdiff3",
		"merge-tree", "--write-tree", "-z",
		"--merge-base="+originalParent,
		newParentOID, commitID,
	)
	if err != nil {
		return "", nil, syncerror.New(syncerror.KindGitInvocation, "merge-tree failed", err)
	}

	treeID, conflicts := parseMergeTreeOutput(out)
	if len(conflicts) > 0 {
		return treeID, conflicts, nil
	}
	return treeID, nil, nil
}

// parseMergeTreeOutput splits `merge-tree --write-tree -z` output into the
// resulting tree id and any NUL-separated conflict file entries
// ("mode SP object SP stage TAB path").
func parseMergeTreeOutput(out string) (string, []ConflictFileEntry) {
	parts := strings.Split(out, "\x00")
	if len(parts) == 0 {
		return "", nil
	}
	treeID := strings.TrimSpace(parts[0])

	entries := make(map[string]*ConflictFileEntry)
	var order []string
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		tabIdx := strings.IndexByte(part, '\t')
		if tabIdx < 0 {
			continue
		}
		meta := part[:tabIdx]
		path := part[tabIdx+1:]
		fields := strings.Fields(meta)
		if len(fields) < 3 {
			continue
		}
		object := fields[1]
		stage := fields[2]

		entry, ok := entries[path]
		if !ok {
			entry = &ConflictFileEntry{Path: path}
			entries[path] = entry
			order = append(order, path)
		}
		switch stage {
		case "1":
			entry.Base = object
		case "2":
			entry.Ours = object
		case "3":
			entry.Theirs = object
		}
	}

	result := make([]ConflictFileEntry, 0, len(order))
	for _, path := range order {
		result = append(result, *entries[path])
	}
	return treeID, result
}

// CreateCommitParams parameters for CreateOrUpdateCommit.
type CreateCommitParams struct {
	Commit              domain.Commit
	NewParentOID        string
	ReuseIfPossible     bool
	ExistingVirtualSet  map[string]struct{} // nil means "verify via rev-parse"
}

// CreateOrUpdateCommitResult is the result of creating/reusing a commit, or
// the set of conflicting files if the merge could not complete cleanly (in
// which case NewCommitHash/Status/NoteSubject are zero and the caller is
// expected to run the conflict analyzer before reporting a CommitError).
type CreateOrUpdateCommitResult struct {
	NewCommitHash string
	Status        domain.CommitSyncStatus
	NoteSubject   string // stripped subject to record in the identity note
	Conflicts     []ConflictFileEntry
}

// CreateOrUpdateCommit either reuses a previously mapped commit (if the
// git-notes identity map still resolves and ReuseIfPossible is set), reuses
// the original tree verbatim when parent trees match, or cherry-picks via
// merge-tree and creates a new commit object with commit-tree, carrying
// over the original author identity and stripped subject.
func CreateOrUpdateCommit(ctx context.Context, git Executor, cache TreeCache, p CreateCommitParams) (CreateOrUpdateCommitResult, error) {
	commit := p.Commit

	if p.ReuseIfPossible && commit.MappedCommitID != "" {
		exists := false
		if p.ExistingVirtualSet != nil {
			_, exists = p.ExistingVirtualSet[commit.MappedCommitID]
		} else if _, err := git.Execute(ctx, "rev-parse", "--verify", commit.MappedCommitID); err == nil {
			exists = true
		}
		if exists {
			return CreateOrUpdateCommitResult{
				NewCommitHash: commit.MappedCommitID,
				Status:        domain.CommitUnchanged,
				NoteSubject:   commit.StrippedSubject,
			}, nil
		}
	}

	treeID, conflicts, err := FastCherryPick(ctx, git, cache, commit.ID, p.NewParentOID)
	if err != nil {
		return CreateOrUpdateCommitResult{}, err
	}
	if len(conflicts) > 0 {
		return CreateOrUpdateCommitResult{Conflicts: conflicts}, nil
	}

	message := commit.StrippedSubject
	if body, found := strings.CutPrefix(commit.Message, commit.Subject); found {
		message = commit.StrippedSubject + body
	}

	env := map[string]string{
		"GIT_AUTHOR_NAME":     commit.AuthorName,
		"GIT_AUTHOR_EMAIL":    commit.AuthorEmail,
		"GIT_AUTHOR_DATE":     strconv.FormatUint(uint64(commit.AuthorTimestamp), 10),
		"GIT_COMMITTER_NAME":  "branch-deck",
		"GIT_COMMITTER_EMAIL": commit.AuthorEmail,
	}

	out, err := git.ExecuteWithEnv(ctx, env, "commit-tree", treeID, "-p", p.NewParentOID, "-m", message)
	if err != nil {
		return CreateOrUpdateCommitResult{}, syncerror.New(syncerror.KindGitInvocation, "commit-tree failed", err)
	}

	noteSubject := commit.StrippedSubject
	if noteSubject == "" {
		noteSubject = commit.Subject
	}

	return CreateOrUpdateCommitResult{
		NewCommitHash: strings.TrimSpace(out),
		Status:        domain.CommitCreated,
		NoteSubject:   noteSubject,
	}, nil
}
