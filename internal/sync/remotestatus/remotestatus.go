// Package remotestatus computes baseline resolution and remote status:
// ahead/behind counts and last-push time for a virtual branch against
// its "origin/{ref}" remote-tracking counterpart.
package remotestatus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Executor is the subset of gitexec.Invoker remote status needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
}

// Status is the remote status result for one virtual branch.
type Status struct {
	BranchName       string
	RemoteExists     bool
	UnpushedCommits  []string
	CommitsBehind    uint32
	MyUnpushedCount  uint32
	LastPushTime     uint32
}

// ResolveBaseline finds the baseline ref to sync against: "origin/{preferred}"
// if that remote-tracking ref exists, else the local branch "{preferred}"
// if that exists, else a precondition error.
func ResolveBaseline(ctx context.Context, git Executor, preferred string) (string, error) {
	remote := "origin/" + preferred
	if _, err := git.Execute(ctx, "rev-parse", "--verify", "--quiet", remote); err == nil {
		return remote, nil
	}
	if _, err := git.Execute(ctx, "rev-parse", "--verify", "--quiet", preferred); err == nil {
		return preferred, nil
	}
	return "", fmt.Errorf("no baseline branch found: neither %q nor %q exists", remote, preferred)
}

// remoteStatusAndPushTime resolves whether the remote-tracking ref exists
// and, if so, the unix timestamp of its last "update by push" reflog entry.
func remoteStatusAndPushTime(ctx context.Context, git Executor, remoteRef string) (exists bool, lastPush uint32) {
	lines, err := git.ExecuteLines(ctx, "--no-pager", "reflog", "show", "--date=unix", remoteRef)
	if err != nil {
		return false, 0
	}
	for _, line := range lines {
		if !strings.Contains(line, "update by push") {
			continue
		}
		start := strings.IndexByte(line, '{')
		end := strings.Index(line, "}: update by push")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		if ts, err := strconv.ParseUint(line[start+1:end], 10, 32); err == nil {
			return true, uint32(ts)
		}
	}
	return true, 0
}

// ComputeForBranch computes the remote status for one local virtual
// branch ref ("{prefix}/virtual/{name}", no refs/heads/ prefix).
func ComputeForBranch(ctx context.Context, git Executor, localRef, branchName, myEmail string, totalCommits uint32, baselineBranch string) (Status, error) {
	remoteRef := "origin/" + localRef

	exists, lastPush := remoteStatusAndPushTime(ctx, git, remoteRef)
	if !exists {
		return Status{
			BranchName:      branchName,
			RemoteExists:    false,
			MyUnpushedCount: totalCommits,
		}, nil
	}

	counts, err := git.Execute(ctx, "--no-pager", "rev-list", "--left-right", "--count", remoteRef+"..."+localRef)
	if err != nil {
		return Status{}, err
	}
	fields := strings.Fields(counts)
	var behind, ahead uint64
	if len(fields) > 0 {
		behind, _ = strconv.ParseUint(fields[0], 10, 32)
	}
	if len(fields) > 1 {
		ahead, _ = strconv.ParseUint(fields[1], 10, 32)
	}

	var unpushed []string
	if ahead > 0 {
		unpushed, err = git.ExecuteLines(ctx, "--no-pager", "rev-list", "--reverse", remoteRef+".."+localRef)
		if err != nil {
			return Status{}, err
		}
	}

	var myUnpushed uint32
	if ahead > 0 && myEmail != "" {
		out, err := git.Execute(ctx, "--no-pager", "rev-list", "--count", "-F", "--author", myEmail,
			remoteRef+".."+localRef, "^"+baselineBranch)
		if err == nil {
			if v, perr := strconv.ParseUint(strings.TrimSpace(out), 10, 32); perr == nil {
				myUnpushed = uint32(v)
			}
		}
	}

	return Status{
		BranchName:      branchName,
		RemoteExists:    true,
		UnpushedCommits: unpushed,
		CommitsBehind:   uint32(behind),
		MyUnpushedCount: myUnpushed,
		LastPushTime:    lastPush,
	}, nil
}
