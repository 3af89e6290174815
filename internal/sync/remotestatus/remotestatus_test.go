package remotestatus

import (
	"context"
	"fmt"
	"testing"
)

type fakeExecutor struct {
	lines map[string][]string
	outs  map[string]string
	fails map[string]bool
}

func key(args []string) string {
	s := ""
	for _, a := range args {
		s += a + "|"
	}
	return s
}

func (f fakeExecutor) Execute(_ context.Context, args ...string) (string, error) {
	k := key(args)
	if f.fails[k] {
		return "", fmt.Errorf("simulated failure for %v", args)
	}
	return f.outs[k], nil
}

// ExecuteLines fails for any command without configured lines, as git
// does for a reflog of a ref that does not exist.
func (f fakeExecutor) ExecuteLines(_ context.Context, args ...string) ([]string, error) {
	lines, ok := f.lines[key(args)]
	if !ok {
		return nil, fmt.Errorf("simulated failure for %v", args)
	}
	return lines, nil
}

func TestResolveBaseline_PrefersRemoteTracking(t *testing.T) {
	git := fakeExecutor{outs: map[string]string{
		key([]string{"rev-parse", "--verify", "--quiet", "origin/main"}): "sha1",
	}}
	got, err := ResolveBaseline(context.Background(), git, "main")
	if err != nil {
		t.Fatalf("ResolveBaseline: %v", err)
	}
	if got != "origin/main" {
		t.Errorf("got %q, want origin/main", got)
	}
}

func TestResolveBaseline_FallsBackToLocalBranch(t *testing.T) {
	git := fakeExecutor{
		fails: map[string]bool{key([]string{"rev-parse", "--verify", "--quiet", "origin/main"}): true},
		outs:  map[string]string{key([]string{"rev-parse", "--verify", "--quiet", "main"}): "sha1"},
	}
	got, err := ResolveBaseline(context.Background(), git, "main")
	if err != nil {
		t.Fatalf("ResolveBaseline: %v", err)
	}
	if got != "main" {
		t.Errorf("got %q, want main", got)
	}
}

func TestResolveBaseline_ErrorsWhenNeitherExists(t *testing.T) {
	git := fakeExecutor{fails: map[string]bool{
		key([]string{"rev-parse", "--verify", "--quiet", "origin/main"}): true,
		key([]string{"rev-parse", "--verify", "--quiet", "main"}):        true,
	}}
	if _, err := ResolveBaseline(context.Background(), git, "main"); err == nil {
		t.Fatal("expected error when neither baseline exists")
	}
}

func TestComputeForBranch_NoRemote(t *testing.T) {
	git := fakeExecutor{lines: map[string][]string{}}
	status, err := ComputeForBranch(context.Background(), git, "user/virtual/feat", "feat", "me@example.com", 5, "main")
	if err != nil {
		t.Fatalf("ComputeForBranch: %v", err)
	}
	if status.RemoteExists {
		t.Error("expected RemoteExists = false")
	}
	if status.MyUnpushedCount != 5 {
		t.Errorf("MyUnpushedCount = %d, want 5 (total commits since never pushed)", status.MyUnpushedCount)
	}
}

func TestComputeForBranch_WithRemote(t *testing.T) {
	localRef := "user/virtual/feat"
	remoteRef := "origin/" + localRef
	git := fakeExecutor{
		lines: map[string][]string{
			key([]string{"--no-pager", "reflog", "show", "--date=unix", remoteRef}): {
				"abc " + remoteRef + "@{1700000000}: update by push",
			},
			key([]string{"--no-pager", "rev-list", "--reverse", remoteRef + ".." + localRef}): {"c1", "c2"},
		},
		outs: map[string]string{
			key([]string{"--no-pager", "rev-list", "--left-right", "--count", remoteRef + "..." + localRef}): "1 2",
			key([]string{"--no-pager", "rev-list", "--count", "-F", "--author", "me@example.com", remoteRef + ".." + localRef, "^main"}): "2",
		},
	}

	status, err := ComputeForBranch(context.Background(), git, localRef, "feat", "me@example.com", 2, "main")
	if err != nil {
		t.Fatalf("ComputeForBranch: %v", err)
	}
	if !status.RemoteExists {
		t.Fatal("expected RemoteExists = true")
	}
	if status.CommitsBehind != 1 {
		t.Errorf("CommitsBehind = %d, want 1", status.CommitsBehind)
	}
	if len(status.UnpushedCommits) != 2 {
		t.Errorf("UnpushedCommits = %v", status.UnpushedCommits)
	}
	if status.MyUnpushedCount != 2 {
		t.Errorf("MyUnpushedCount = %d, want 2", status.MyUnpushedCount)
	}
	if status.LastPushTime != 1700000000 {
		t.Errorf("LastPushTime = %d", status.LastPushTime)
	}
}
