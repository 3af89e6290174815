package conflict

import (
	"context"
	"strings"
	"testing"

	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/sync/cherrypick"
)

type fakeLogExecutor struct {
	blobs     map[string]string
	responses map[string]string // joined args -> output
}

func (f fakeLogExecutor) Execute(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return f.blobs[args[len(args)-1]], nil
}

func (f fakeLogExecutor) ExecuteLines(_ context.Context, args ...string) ([]string, error) {
	key := strings.Join(args, " ")
	out, ok := f.responses[key]
	if !ok {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func TestAnalyzeConflict_MissingCommitTouchesConflictingPath(t *testing.T) {
	git := fakeLogExecutor{
		responses: map[string]string{
			"merge-base parentP targetT":                               "base1",
			"log -1 --format=%H\x1f%s\x1f%an\x1f%at base1":              "base1\x1fbase commit\x1falice\x1f1000",
			"rev-list --left-right --count targetT...parentP":           "2 1",
			"rev-list --count base1..parentP":                          "3",
			"log --first-parent --name-only --format=%H\x1f%s\x1f%an\x1f%at base1..parentP": "c1\x1fTouch calc.js\x1falice\x1f1500\ncalc.js\nother.go",
		},
	}
	entries := []cherrypick.ConflictFileEntry{{Path: "calc.js", Base: "b", Ours: "o", Theirs: "t"}}

	info := AnalyzeConflict(context.Background(), git,
		domain.CommitRef{Hash: "cherry"},
		domain.CommitRef{Hash: "parentP"},
		domain.CommitRef{Hash: "targetT"},
		entries,
	)

	if info.Analysis.MergeBase.Hash != "base1" {
		t.Fatalf("MergeBase = %+v", info.Analysis.MergeBase)
	}
	if info.Analysis.CommitsAheadTarget != 2 || info.Analysis.CommitsAheadSource != 1 {
		t.Errorf("divergence = %+v", info.Analysis)
	}
	if info.Analysis.CommonAncestorDistance != 3 {
		t.Errorf("CommonAncestorDistance = %d, want 3", info.Analysis.CommonAncestorDistance)
	}
	if len(info.Analysis.MissingCommits) != 1 {
		t.Fatalf("want 1 missing commit, got %d: %+v", len(info.Analysis.MissingCommits), info.Analysis.MissingCommits)
	}
	mc := info.Analysis.MissingCommits[0]
	if mc.Hash != "c1" || len(mc.FilesTouched) != 1 || mc.FilesTouched[0] != "calc.js" {
		t.Errorf("missing commit = %+v", mc)
	}
	if _, ok := info.Analysis.ConflictMarkerCommits["cherry"]; !ok {
		t.Errorf("conflict marker commits should include the cherry itself")
	}
}

func TestAnalyzeConflict_NoMergeBaseDegradesGracefully(t *testing.T) {
	git := fakeLogExecutor{responses: map[string]string{}}
	entries := []cherrypick.ConflictFileEntry{{Path: "x.txt"}}

	info := AnalyzeConflict(context.Background(), git,
		domain.CommitRef{Hash: "cherry"},
		domain.CommitRef{Hash: "p"},
		domain.CommitRef{Hash: "t"},
		entries,
	)

	if info.Analysis.MergeBase.Hash != "" {
		t.Errorf("expected empty merge base, got %+v", info.Analysis.MergeBase)
	}
	if len(info.Analysis.MissingCommits) != 0 {
		t.Errorf("expected no missing commits, got %+v", info.Analysis.MissingCommits)
	}
}
