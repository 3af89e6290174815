// Package integration implements the integration detector: layered
// checks that classify whether a virtual branch's commits have already
// landed on the baseline upstream, even after a rebase or squash rewrote
// their hashes.
package integration

import (
	"context"
	"strconv"
	"strings"

	"github.com/branch-deck/branchdeck/internal/adapter/gitconfig"
	"github.com/branch-deck/branchdeck/internal/domain"
)

// Executor is the subset of gitexec.Invoker the detector needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
}

// Detect runs the rebase-tier check always, and additionally runs the
// merge and squash tiers when strategy == StrategyAll: a branch merged into
// the baseline is then classified by the merge tier (Exact) ahead of the
// rebase result, and the squash tier runs only when neither the merge nor
// the rebase tier found the branch integrated.
func Detect(ctx context.Context, git Executor, branchName, baselineBranch string, strategy gitconfig.DetectionStrategy) (domain.IntegrationInfo, error) {
	info, err := detectRebase(ctx, git, branchName, baselineBranch)
	if err != nil {
		return domain.IntegrationInfo{}, err
	}

	if strategy != gitconfig.StrategyAll {
		info.Name = branchName
		return info, nil
	}

	if merged, err := isMerged(ctx, git, branchName, baselineBranch); err == nil && merged {
		mergeInfo, err := detectMerge(ctx, git, branchName, baselineBranch)
		if err == nil {
			mergeInfo.Name = branchName
			return mergeInfo, nil
		}
	}

	if info.Kind == domain.IntegrationIntegrated {
		info.Name = branchName
		return info, nil
	}

	if squashInfo, ok, err := detectSquash(ctx, git, branchName, baselineBranch); err == nil && ok {
		squashInfo.Name = branchName
		return squashInfo, nil
	}

	info.Name = branchName
	return info, nil
}

// detectRebase scans the right-only cherry-marked commits between baseline
// and branch: the branch is considered integrated when none of its commits
// is orphaned (">", no equivalent patch on the baseline side) and at least
// one matches a baseline commit ("="), or when it has no commits outside
// the baseline at all. Confidence is always High for this tier.
func detectRebase(ctx context.Context, git Executor, branchName, baselineBranch string) (domain.IntegrationInfo, error) {
	lines, err := git.ExecuteLines(ctx, "rev-list", "--right-only", "--cherry-mark", "--no-merges",
		"--pretty=format:%m", baselineBranch+"..."+branchName)
	if err != nil {
		return domain.IntegrationInfo{}, err
	}

	var total, orphaned, integrated uint32
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "commit ") {
			continue
		}
		total++
		switch strings.TrimSpace(line) {
		case ">":
			orphaned++
		case "=":
			integrated++
		}
	}

	if total == 0 || (orphaned == 0 && integrated > 0) {
		integratedAt := integrationTimestamp(ctx, git, branchName, baselineBranch)
		return domain.IntegrationInfo{
			Kind:         domain.IntegrationIntegrated,
			Confidence:   domain.ConfidenceHigh,
			CommitCount:  total,
			IntegratedAt: integratedAt,
		}, nil
	}

	return domain.IntegrationInfo{
		Kind:             domain.IntegrationNotIntegrated,
		TotalCommitCount: total,
		IntegratedCount:  integrated,
		OrphanedCount:    orphaned,
	}, nil
}

// integrationTimestamp finds the timestamp of the first "=" (integrated)
// left/right cherry-marked commit.
func integrationTimestamp(ctx context.Context, git Executor, branchName, baselineBranch string) uint32 {
	lines, err := git.ExecuteLines(ctx, "rev-list", "--left-right", "--left-only", "--cherry-mark", "--no-merges",
		"--pretty=format:%m %ct", baselineBranch+"..."+branchName)
	if err != nil {
		return 0
	}
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, "= "); ok {
			if ts, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 32); err == nil {
				return uint32(ts)
			}
		}
	}
	return 0
}

// isMerged reports whether branchName is reachable from baselineBranch via
// a merge commit (`git branch --merged`).
func isMerged(ctx context.Context, git Executor, branchName, baselineBranch string) (bool, error) {
	lines, err := git.ExecuteLines(ctx, "branch", "--merged", baselineBranch, "--list", branchName)
	if err != nil {
		return false, err
	}
	return len(lines) > 0, nil
}

// detectMerge finds the oldest ancestry-path merge commit that brought
// branchName into baselineBranch, reporting Exact confidence always.
func detectMerge(ctx context.Context, git Executor, branchName, baselineBranch string) (domain.IntegrationInfo, error) {
	countOut, err := git.Execute(ctx, "rev-list", "--count", baselineBranch+"..."+branchName)
	if err != nil {
		countOut = "0"
	}
	count, _ := strconv.ParseUint(strings.TrimSpace(countOut), 10, 32)

	lines, err := git.ExecuteLines(ctx, "log", "--merges", "--ancestry-path",
		"--format=%H %ct", branchName+".."+baselineBranch)
	var integratedAt uint32
	if err == nil && len(lines) > 0 {
		oldest := lines[len(lines)-1]
		fields := strings.Fields(oldest)
		if len(fields) == 2 {
			if ts, err := strconv.ParseUint(fields[1], 10, 32); err == nil {
				integratedAt = uint32(ts)
			}
		}
	}

	return domain.IntegrationInfo{
		Kind:         domain.IntegrationIntegrated,
		Confidence:   domain.ConfidenceExact,
		CommitCount:  uint32(count),
		IntegratedAt: integratedAt,
	}, nil
}

// detectSquash reports Integrated/High if either the branch's working tree
// is diff-clean against baseline, or a merge-tree of branch onto its own
// merge-base with baseline reproduces baseline's own tree. ok == false
// means this tier made no classification.
func detectSquash(ctx context.Context, git Executor, branchName, baselineBranch string) (domain.IntegrationInfo, bool, error) {
	commitCount := commitCountOf(ctx, git, baselineBranch, branchName)

	if clean, err := diffIsClean(ctx, git, baselineBranch, branchName); err == nil && clean {
		integratedAt := squashTimestamp(ctx, git, branchName, baselineBranch)
		return domain.IntegrationInfo{
			Kind:         domain.IntegrationIntegrated,
			Confidence:   domain.ConfidenceHigh,
			CommitCount:  commitCount,
			IntegratedAt: integratedAt,
		}, true, nil
	}

	mergeBaseOut, err := git.Execute(ctx, "merge-base", baselineBranch, branchName)
	if err != nil {
		return domain.IntegrationInfo{}, false, nil
	}
	mergeBase := strings.TrimSpace(mergeBaseOut)

	mergedTree, err := git.Execute(ctx, "merge-tree", "--write-tree", "--merge-base="+mergeBase, baselineBranch, branchName)
	if err != nil {
		return domain.IntegrationInfo{}, false, nil
	}

	baselineTree, err := treeID(ctx, git, baselineBranch)
	if err != nil {
		return domain.IntegrationInfo{}, false, nil
	}

	if strings.TrimSpace(mergedTree) == baselineTree {
		integratedAt := squashTimestamp(ctx, git, branchName, baselineBranch)
		return domain.IntegrationInfo{
			Kind:         domain.IntegrationIntegrated,
			Confidence:   domain.ConfidenceHigh,
			CommitCount:  commitCount,
			IntegratedAt: integratedAt,
		}, true, nil
	}
	return domain.IntegrationInfo{}, false, nil
}

// commitCountOf returns the number of commits reachable from branchName but
// not from baselineBranch, defaulting to 0 if the count can't be read.
func commitCountOf(ctx context.Context, git Executor, baselineBranch, branchName string) uint32 {
	out, err := git.Execute(ctx, "rev-list", "--count", baselineBranch+".."+branchName)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// squashTimestamp finds when branchName's squashed content landed on
// baselineBranch: it takes the branch tip's commit subject and greps
// baseline's log for the first (fixed-string) match, returning that
// commit's committer time.
func squashTimestamp(ctx context.Context, git Executor, branchName, baselineBranch string) uint32 {
	subject, err := git.Execute(ctx, "log", "-1", "--format=%s", branchName)
	if err != nil {
		return 0
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0
	}
	return commitTimeBySubject(ctx, git, baselineBranch, subject)
}

// commitTimeBySubject returns the committer time of the first commit in
// baseline whose subject fixed-string-matches subject, or 0 if none match.
func commitTimeBySubject(ctx context.Context, git Executor, baseline, subject string) uint32 {
	out, err := git.Execute(ctx, "log", "--format=%ct", "-F", "--grep", subject, "-n", "1", baseline)
	if err != nil {
		return 0
	}
	ts, err := strconv.ParseUint(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(ts)
}

func diffIsClean(ctx context.Context, git Executor, a, b string) (bool, error) {
	_, err := git.Execute(ctx, "diff", "--quiet", a+"..."+b)
	return err == nil, nil
}

func treeID(ctx context.Context, git Executor, ref string) (string, error) {
	out, err := git.Execute(ctx, "rev-parse", ref+"^{tree}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
