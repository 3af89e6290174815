package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/branch-deck/branchdeck/internal/sync/events"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(),
		"GIT_AUTHOR_NAME=Tester", "GIT_AUTHOR_EMAIL=tester@example.com",
		"GIT_COMMITTER_NAME=Tester", "GIT_COMMITTER_EMAIL=tester@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeAndCommit(t *testing.T, dir, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-q", "-m", message)
}

func TestSync_GroupsAndCreatesVirtualBranches(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	writeAndCommit(t, dir, "base.txt", "base\n", "base commit")
	runGit(t, dir, "config", "branchdeck.branchPrefix", "alice")

	writeAndCommit(t, dir, "auth.txt", "auth\n", "(auth) add login")
	writeAndCommit(t, dir, "auth2.txt", "auth2\n", "(auth) fix login bug")
	writeAndCommit(t, dir, "billing.txt", "billing\n", "(billing) add invoice")

	e, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var received []events.Event
	sink := func(ev events.Event) { received = append(received, ev) }

	err = e.Sync(context.Background(), Options{PreferredBaseline: "main"}, sink)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	var grouped *events.BranchesGroupedData
	var completed bool
	for _, ev := range received {
		switch ev.Type {
		case events.TypeBranchesGrouped:
			data := ev.Data.(events.BranchesGroupedData)
			grouped = &data
		case events.TypeCompleted:
			completed = true
		}
	}
	if grouped == nil {
		t.Fatal("expected a BranchesGrouped event")
	}
	if !completed {
		t.Error("expected a terminal Completed event")
	}

	want := map[string]bool{"alice/virtual/auth": true, "alice/virtual/billing": true}
	if len(grouped.Branches) != len(want) {
		t.Fatalf("Branches = %v, want 2 entries", grouped.Branches)
	}
	for _, b := range grouped.Branches {
		if !want[b] {
			t.Errorf("unexpected branch %q", b)
		}
	}

	for branch := range want {
		if !refExists(t, dir, branch) {
			t.Errorf("expected ref refs/heads/%s to exist", branch)
		}
	}

	authLog := runGit(t, dir, "log", "--oneline", "alice/virtual/auth")
	if !strings.Contains(authLog, "add login") || !strings.Contains(authLog, "fix login bug") {
		t.Errorf("alice/virtual/auth log missing expected commits: %s", authLog)
	}
}

func refExists(t *testing.T, dir, name string) bool {
	t.Helper()
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = dir
	return cmd.Run() == nil
}

func TestSync_ReportsOrderingGuarantee(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	writeAndCommit(t, dir, "base.txt", "base\n", "base commit")
	runGit(t, dir, "config", "branchdeck.branchPrefix", "alice")
	writeAndCommit(t, dir, "auth.txt", "auth\n", "(auth) add login")

	e, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var order []events.Type
	sink := func(ev events.Event) { order = append(order, ev.Type) }

	if err := e.Sync(context.Background(), Options{PreferredBaseline: "main"}, sink); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	groupedIdx := -1
	for i, t2 := range order {
		if t2 == events.TypeBranchesGrouped {
			groupedIdx = i
			break
		}
	}
	if groupedIdx < 0 {
		t.Fatal("no BranchesGrouped event observed")
	}
	for i, t2 := range order {
		if i < groupedIdx && (t2 == events.TypeCommitSynced || t2 == events.TypeBranchStatusUpdate) {
			t.Errorf("branch-specific event %v observed before BranchesGrouped at index %d", t2, i)
		}
	}
}

func TestSync_MissingBranchPrefixIsPrecondition(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	writeAndCommit(t, dir, "base.txt", "base\n", "base commit")

	e, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = e.Sync(context.Background(), Options{PreferredBaseline: "main"}, func(events.Event) {})
	if err == nil {
		t.Fatal("expected an error when branchdeck.branchPrefix is unset")
	}
}
