// Conflict attribution: once merge-tree reports conflicting paths, find
// the commits on the cherry's original-parent side that explain them,
// reusing the rev-list --left-right --count idiom for divergence
// counting.
package conflict

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/sync/cherrypick"
)

// LogExecutor is the subset of gitexec.Invoker the analyzer's commit walks
// need, in addition to BlobReader.
type LogExecutor interface {
	BlobReader
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
}

const commitLogFieldSep = "\x1f"

// commitLogFormat renders one commit per line as
// hash\x1fsubject\x1fauthor\x1fts, used by both the merge-base lookup and
// the missing-commit walk.
const commitLogFormat = "--format=%H" + commitLogFieldSep + "%s" + commitLogFieldSep + "%an" + commitLogFieldSep + "%at"

// AnalyzeConflict builds the full MergeConflictInfo for a cherry-pick that
// produced conflicts: per-file diffs (via AnalyzeConflicts) plus the
// ConflictAnalysis attribution report. Degrades to empty analysis fields on
// any sub-step failure rather than erroring.
func AnalyzeConflict(ctx context.Context, git LogExecutor, commit domain.CommitRef, originalParent, targetHead domain.CommitRef, entries []cherrypick.ConflictFileEntry) domain.MergeConflictInfo {
	details := AnalyzeConflicts(ctx, git, entries)

	paths := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		paths[e.Path] = struct{}{}
	}

	analysis := buildConflictAnalysis(ctx, git, originalParent.Hash, targetHead.Hash, paths)
	analysis.ConflictMarkerCommits[commit.Hash] = commit
	analysis.ConflictMarkerCommits[originalParent.Hash] = originalParent
	analysis.ConflictMarkerCommits[targetHead.Hash] = targetHead

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Path)
	}

	return domain.MergeConflictInfo{
		Commit:           commit,
		OriginalParent:   originalParent,
		TargetBranchHead: targetHead,
		ConflictingFiles: details,
		ConflictSummary:  fmt.Sprintf("conflicts in %s", strings.Join(names, ", ")),
		Analysis:         analysis,
	}
}

func buildConflictAnalysis(ctx context.Context, git LogExecutor, originalParent, targetHead string, conflictingPaths map[string]struct{}) domain.ConflictAnalysis {
	analysis := domain.ConflictAnalysis{
		ConflictMarkerCommits: make(map[string]domain.CommitRef),
	}

	mergeBase, err := mergeBaseOf(ctx, git, originalParent, targetHead)
	if err != nil || mergeBase == "" {
		return analysis
	}

	if ref, ok := readCommitRef(ctx, git, mergeBase); ok {
		analysis.MergeBase = ref
		analysis.ConflictMarkerCommits[mergeBase] = ref
	}

	if counts, err := leftRightCount(ctx, git, targetHead, originalParent); err == nil {
		analysis.CommitsAheadTarget = counts[0]
		analysis.CommitsAheadSource = counts[1]
	}

	if distance, err := commitCount(ctx, git, mergeBase, originalParent); err == nil {
		analysis.CommonAncestorDistance = distance
	}

	missing := findMissingCommits(ctx, git, mergeBase, originalParent, conflictingPaths)
	analysis.MissingCommits = missing
	for _, m := range missing {
		analysis.ConflictMarkerCommits[m.Hash] = m.CommitRef
	}

	return analysis
}

// mergeBaseOf finds the nearest common ancestor of a and b, returning ""
// (no error) if they share no history.
func mergeBaseOf(ctx context.Context, git LogExecutor, a, b string) (string, error) {
	out, err := git.Execute(ctx, "merge-base", a, b)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// leftRightCount returns {behind, ahead} for "left...right", matching the
// --left-right --count output order used throughout the engine.
func leftRightCount(ctx context.Context, git LogExecutor, left, right string) ([2]uint32, error) {
	out, err := git.Execute(ctx, "rev-list", "--left-right", "--count", left+"..."+right)
	if err != nil {
		return [2]uint32{}, err
	}
	fields := strings.Fields(out)
	var counts [2]uint32
	for i := 0; i < 2 && i < len(fields); i++ {
		v, perr := strconv.ParseUint(fields[i], 10, 32)
		if perr != nil {
			return [2]uint32{}, perr
		}
		counts[i] = uint32(v)
	}
	return counts, nil
}

// commitCount returns the number of commits reachable from to but not from,
// i.e. the length of the from..to range — used for the cherry parent's
// distance from the common ancestor.
func commitCount(ctx context.Context, git LogExecutor, from, to string) (uint32, error) {
	out, err := git.Execute(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// findMissingCommits walks mergeBase..originalParent on the first-parent
// line, keeping only commits that touched one of conflictingPaths — the
// commits whose absence on the target side plausibly explains the
// conflict.
func findMissingCommits(ctx context.Context, git LogExecutor, mergeBase, originalParent string, conflictingPaths map[string]struct{}) []domain.MissingCommit {
	if mergeBase == "" || originalParent == "" || mergeBase == originalParent {
		return nil
	}

	lines, err := git.ExecuteLines(ctx, "log", "--first-parent", "--name-only", commitLogFormat, mergeBase+".."+originalParent)
	if err != nil {
		return nil
	}

	var missing []domain.MissingCommit
	var current *domain.MissingCommit
	flush := func() {
		if current != nil && len(current.FilesTouched) > 0 {
			missing = append(missing, *current)
		}
		current = nil
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		if strings.Contains(line, commitLogFieldSep) {
			flush()
			ref, ok := parseCommitLogLine(line)
			if !ok {
				continue
			}
			current = &domain.MissingCommit{CommitRef: ref}
			continue
		}
		if current == nil {
			continue
		}
		if _, touched := conflictingPaths[line]; touched {
			current.FilesTouched = append(current.FilesTouched, line)
		}
	}
	flush()

	return missing
}

func parseCommitLogLine(line string) (domain.CommitRef, bool) {
	fields := strings.SplitN(line, commitLogFieldSep, 4)
	if len(fields) != 4 {
		return domain.CommitRef{}, false
	}
	ts, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return domain.CommitRef{}, false
	}
	return domain.CommitRef{
		Hash:            fields[0],
		Subject:         fields[1],
		AuthorName:      fields[2],
		AuthorTimestamp: uint32(ts),
	}, true
}

// readCommitRef fetches a single commit's display fields via `git log
// -1`, used for the merge-base identity.
func readCommitRef(ctx context.Context, git LogExecutor, hash string) (domain.CommitRef, bool) {
	lines, err := git.ExecuteLines(ctx, "log", "-1", commitLogFormat, hash)
	if err != nil || len(lines) == 0 {
		return domain.CommitRef{}, false
	}
	return parseCommitLogLine(lines[0])
}
