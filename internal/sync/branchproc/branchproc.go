// Package branchproc implements the branch processor: given one group of
// commits produced by the grouper, walks them in order, drives the
// cherry-pick engine and conflict analyzer, emits per-commit and
// per-branch events, and updates the virtual branch ref on success.
package branchproc

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/sync/cherrypick"
	"github.com/branch-deck/branchdeck/internal/sync/conflict"
	"github.com/branch-deck/branchdeck/internal/sync/events"
	"github.com/branch-deck/branchdeck/internal/sync/notes"
	"github.com/branch-deck/branchdeck/internal/sync/remotestatus"
	"github.com/branch-deck/branchdeck/internal/sync/treecache"
)

// GitOps is the full set of git invocation variants the branch processor
// and the components it drives (cherry-pick, conflict analysis, remote
// status, notes) need. Concrete callers pass a *gitexec.Invoker, which
// implements every method here.
type GitOps interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteRaw(ctx context.Context, args ...string) (string, error)
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
	ExecuteWithEnv(ctx context.Context, env map[string]string, args ...string) (string, error)
	ExecuteWithInput(ctx context.Context, input string, args ...string) (string, error)
}

// Params bundles one group's processing inputs.
type Params struct {
	Prefix         string
	BaselineBranch string
	MyEmail        string
	Group          domain.GroupedBranch
}

// Deps bundles the shared, process-wide collaborators every branch task
// reads or writes through: the tree-id cache (shared across tasks,
// lock-free reads), the notes store (its own internal mutex), and the
// event reporter (its own internal mutex). None of these are owned
// exclusively by one task.
type Deps struct {
	Git       GitOps
	TreeCache *treecache.Cache
	Notes     *notes.Store
	Reporter  *events.Reporter
}

// Process runs the full per-branch pipeline for one group: resolve the
// final ref name, walk commits applying cherry-pick/reuse, update the ref
// on success, and report remote status. Returns the final branch ref name
// and ok == false if the branch did not complete cleanly (conflict or
// git-invocation error) — both outcomes are already fully reported on the
// event stream and are not also returned as a Go error, since a
// branch-level failure must not abort the rest of the sync.
func Process(ctx context.Context, deps Deps, p Params) (branchRef string, ok bool) {
	finalName, err := domain.ToFinalBranchName(p.Prefix, p.Group.Name)
	if err != nil {
		deps.Reporter.Report(events.Event{
			Type: events.TypeBranchStatusUpdate,
			Data: events.BranchStatusUpdateData{Branch: p.Group.Name, Status: domain.BranchError, Error: errPtr(events.GenericError("%v", err))},
		})
		return "", false
	}

	commits := p.Group.Commits
	if len(commits) == 0 {
		return finalName, true
	}

	existed := refExists(ctx, deps.Git, finalName)
	var existingSet map[string]struct{}
	sharedParent, err := parentOf(ctx, deps.Git, commits[0].ID)
	if err != nil {
		deps.Reporter.Report(events.Event{
			Type: events.TypeBranchStatusUpdate,
			Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchError, Error: errPtr(events.GenericError("%v", err))},
		})
		return finalName, false
	}
	if existed {
		existingSet, err = commitSet(ctx, deps.Git, finalName, sharedParent)
		if err != nil {
			deps.Reporter.Report(events.Event{
				Type: events.TypeBranchStatusUpdate,
				Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchError, Error: errPtr(events.GenericError("%v", err))},
			})
			return finalName, false
		}
	}

	currentParent := sharedParent
	anyChanged := false
	var pendingNotes []notes.CommitNoteInfo
	var created, unchanged int

	for i, commit := range commits {
		reuseIfPossible := existed && !anyChanged

		result, err := cherrypick.CreateOrUpdateCommit(ctx, deps.Git, deps.TreeCache, cherrypick.CreateCommitParams{
			Commit:             commit,
			NewParentOID:       currentParent,
			ReuseIfPossible:    reuseIfPossible,
			ExistingVirtualSet: existingSetOrNil(existed, existingSet),
		})
		if err != nil {
			reportCommitFailure(deps.Reporter, finalName, commit.ID, err)
			blockRemaining(deps.Reporter, finalName, commits[i+1:])
			deps.Reporter.Report(events.Event{
				Type: events.TypeBranchStatusUpdate,
				Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchError, Error: errPtr(events.GenericError("%v", err))},
			})
			return finalName, false
		}

		if len(result.Conflicts) > 0 {
			deps.Reporter.Report(events.Event{
				Type: events.TypeBranchStatusUpdate,
				Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchAnalyzingConflict},
			})

			info := buildMergeConflictInfo(ctx, deps.Git, commit, currentParent, result.Conflicts)
			deps.Reporter.Report(events.Event{
				Type: events.TypeCommitError,
				Data: events.CommitErrorData{Branch: finalName, Hash: commit.ID, Error: events.ConflictError(info)},
			})
			blockRemaining(deps.Reporter, finalName, commits[i+1:])
			deps.Reporter.Report(events.Event{
				Type: events.TypeBranchStatusUpdate,
				Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchMergeConflict},
			})
			return finalName, false
		}

		if result.Status == domain.CommitCreated {
			created++
			anyChanged = true
		} else {
			unchanged++
		}

		pendingNotes = append(pendingNotes, notes.CommitNoteInfo{OriginalOID: commit.ID, NewOID: result.NewCommitHash})
		deps.Reporter.Report(events.Event{
			Type: events.TypeCommitSynced,
			Data: events.CommitSyncedData{Branch: finalName, OriginalHash: commit.ID, NewHash: result.NewCommitHash, Status: result.Status},
		})

		currentParent = result.NewCommitHash
	}

	if _, err := deps.Git.Execute(ctx, "branch", "-f", finalName, currentParent); err != nil {
		deps.Reporter.Report(events.Event{
			Type: events.TypeBranchStatusUpdate,
			Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchError, Error: errPtr(events.GenericError("update branch ref: %v", err))},
		})
		return finalName, false
	}

	if err := deps.Notes.WriteIdentityBatch(ctx, pendingNotes); err != nil {
		deps.Reporter.Report(events.Event{
			Type: events.TypeBranchStatusUpdate,
			Data: events.BranchStatusUpdateData{Branch: finalName, Status: domain.BranchError, Error: errPtr(events.GenericError("write identity notes: %v", err))},
		})
		return finalName, false
	}

	status := domain.BranchUnchanged
	switch {
	case !existed:
		status = domain.BranchCreated
	case created > 0:
		status = domain.BranchUpdated
	}
	deps.Reporter.Report(events.Event{
		Type: events.TypeBranchStatusUpdate,
		Data: events.BranchStatusUpdateData{Branch: finalName, Status: status},
	})

	remote, err := remotestatus.ComputeForBranch(ctx, deps.Git, finalName, p.Group.Name, p.MyEmail, uint32(len(commits)), p.BaselineBranch)
	if err == nil {
		deps.Reporter.Report(events.Event{
			Type: events.TypeRemoteStatusUpdate,
			Data: events.RemoteStatusUpdateData{
				Branch:          remote.BranchName,
				RemoteExists:    remote.RemoteExists,
				UnpushedCommits: remote.UnpushedCommits,
				CommitsBehind:   remote.CommitsBehind,
				MyUnpushedCount: remote.MyUnpushedCount,
				LastPushTime:    remote.LastPushTime,
			},
		})
	}

	return finalName, true
}

func existingSetOrNil(existed bool, set map[string]struct{}) map[string]struct{} {
	if !existed {
		return nil
	}
	return set
}

func refExists(ctx context.Context, git GitOps, name string) bool {
	_, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

func parentOf(ctx context.Context, git GitOps, commitID string) (string, error) {
	out, err := git.Execute(ctx, "rev-parse", commitID+"^")
	if err != nil {
		return "", fmt.Errorf("resolve shared parent for %s: %w", commitID, err)
	}
	return strings.TrimSpace(out), nil
}

func commitSet(ctx context.Context, git GitOps, ref, excludeFrom string) (map[string]struct{}, error) {
	lines, err := git.ExecuteLines(ctx, "rev-list", ref, "^"+excludeFrom)
	if err != nil {
		return nil, fmt.Errorf("snapshot existing commits on %s: %w", ref, err)
	}
	set := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		set[l] = struct{}{}
	}
	return set, nil
}

func reportCommitFailure(r *events.Reporter, branch, hash string, err error) {
	r.Report(events.Event{
		Type: events.TypeCommitError,
		Data: events.CommitErrorData{Branch: branch, Hash: hash, Error: events.GenericError("%v", err)},
	})
}

func blockRemaining(r *events.Reporter, branch string, remaining []domain.Commit) {
	if len(remaining) == 0 {
		return
	}
	hashes := make([]string, len(remaining))
	for i, c := range remaining {
		hashes[i] = c.ID
	}
	r.Report(events.Event{
		Type: events.TypeCommitsBlocked,
		Data: events.CommitsBlockedData{Branch: branch, RemainingHashes: hashes},
	})
}

func errPtr(p events.ErrorPayload) *events.ErrorPayload { return &p }

// buildMergeConflictInfo runs the conflict analyzer to assemble a full
// domain.MergeConflictInfo from raw ConflictFileEntry output, degrading
// to whatever partial data it can gather rather than failing.
func buildMergeConflictInfo(ctx context.Context, git GitOps, commit domain.Commit, targetHead string, conflicts []cherrypick.ConflictFileEntry) domain.MergeConflictInfo {
	commitRef := domain.CommitRef{
		Hash:            commit.ID,
		Subject:         commit.Subject,
		Message:         commit.Message,
		AuthorName:      commit.AuthorName,
		AuthorTimestamp: commit.AuthorTimestamp,
		CommitterTime:   commit.CommitterTimestamp,
	}
	parentRef := commitRefOrStub(ctx, git, commit.ParentID)
	targetRef := commitRefOrStub(ctx, git, targetHead)

	return conflict.AnalyzeConflict(ctx, git, commitRef, parentRef, targetRef, conflicts)
}

func commitRefOrStub(ctx context.Context, git GitOps, hash string) domain.CommitRef {
	out, err := git.Execute(ctx, "log", "-1", "--format=%H\x1f%s\x1f%an\x1f%at\x1f%ct", hash)
	if err != nil {
		return domain.CommitRef{Hash: hash}
	}
	fields := strings.SplitN(strings.TrimSpace(out), "\x1f", 5)
	if len(fields) != 5 {
		return domain.CommitRef{Hash: hash}
	}
	authorTs, _ := strconv.ParseUint(fields[3], 10, 32)
	committerTs, _ := strconv.ParseUint(fields[4], 10, 32)
	return domain.CommitRef{
		Hash:            fields[0],
		Subject:         fields[1],
		AuthorName:      fields[2],
		AuthorTimestamp: uint32(authorTs),
		CommitterTime:   uint32(committerTs),
	}
}
