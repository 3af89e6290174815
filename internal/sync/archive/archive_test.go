package archive

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/branch-deck/branchdeck/internal/adapter/gitexec"
	"github.com/branch-deck/branchdeck/internal/domain"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) string {
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
	run("init", "-q", "-b", "main")
	run("commit", "--allow-empty", "-q", "-m", "initial commit")
	return dir
}

func TestRenameToArchive_SingleBranch(t *testing.T) {
	dir := initRepo(t)
	git := gitexec.New(dir)
	ctx := context.Background()

	if _, err := git.Execute(ctx, "branch", "user/virtual/feature-auth"); err != nil {
		t.Fatalf("create virtual branch: %v", err)
	}

	m := New(git)
	target, err := m.RenameToArchive(ctx, "user", "2026-07-29", "user/virtual/feature-auth", "feature-auth")
	if err != nil {
		t.Fatalf("RenameToArchive: %v", err)
	}
	if target != "user/archived/2026-07-29/feature-auth" {
		t.Errorf("target = %q", target)
	}

	if _, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+target); err != nil {
		t.Errorf("archived ref should exist: %v", err)
	}
	if _, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/user/virtual/feature-auth"); err == nil {
		t.Error("original virtual branch ref should be gone")
	}
}

func TestRenameToArchive_CollisionAppendsSuffix(t *testing.T) {
	dir := initRepo(t)
	git := gitexec.New(dir)
	ctx := context.Background()

	if _, err := git.Execute(ctx, "branch", "user/archived/2026-07-29/feature-auth"); err != nil {
		t.Fatalf("seed collision ref: %v", err)
	}
	if _, err := git.Execute(ctx, "branch", "user/virtual/feature-auth"); err != nil {
		t.Fatalf("create virtual branch: %v", err)
	}

	m := New(git)
	target, err := m.RenameToArchive(ctx, "user", "2026-07-29", "user/virtual/feature-auth", "feature-auth")
	if err != nil {
		t.Fatalf("RenameToArchive: %v", err)
	}
	if target != "user/archived/2026-07-29/feature-auth-1" {
		t.Errorf("target = %q, want suffix -1", target)
	}
}

func TestBatchArchive_MultiplePairs(t *testing.T) {
	dir := initRepo(t)
	git := gitexec.New(dir)
	ctx := context.Background()

	var pairs []RenamePair
	for _, name := range []string{"feature-a", "feature-b"} {
		full := "user/virtual/" + name
		if _, err := git.Execute(ctx, "branch", full); err != nil {
			t.Fatalf("create %s: %v", full, err)
		}
		sha, err := git.Execute(ctx, "rev-parse", full)
		if err != nil {
			t.Fatalf("rev-parse %s: %v", full, err)
		}
		pairs = append(pairs, RenamePair{From: full, Simple: name, SHA: sha})
	}

	m := New(git)
	result, err := m.BatchArchive(ctx, "user", "2026-07-29", pairs)
	if err != nil {
		t.Fatalf("BatchArchive: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %+v", result)
	}
	for from, to := range result {
		if _, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+to); err != nil {
			t.Errorf("archived ref %s should exist: %v", to, err)
		}
		if _, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+from); err == nil {
			t.Errorf("original ref %s should be gone", from)
		}
	}
}

func TestCleanup_OnlyDeletesOldIntegratedBranches(t *testing.T) {
	dir := initRepo(t)
	git := gitexec.New(dir)
	ctx := context.Background()

	for _, name := range []string{"old-integrated", "old-orphaned", "old-uncached", "recent-integrated"} {
		full := "user/archived/2026-07-19/" + name
		if _, err := git.Execute(ctx, "branch", full); err != nil {
			t.Fatalf("create %s: %v", full, err)
		}
	}

	integrated := &domain.IntegrationInfo{Kind: domain.IntegrationIntegrated}
	notIntegrated := &domain.IntegrationInfo{Kind: domain.IntegrationNotIntegrated}

	branches := []ArchivedBranch{
		{Name: "user/archived/2026-07-19/old-integrated", AgeDays: 10, Classification: integrated},
		{Name: "user/archived/2026-07-19/old-orphaned", AgeDays: 10, Classification: notIntegrated},
		{Name: "user/archived/2026-07-19/old-uncached", AgeDays: 10, Classification: nil},
		{Name: "user/archived/2026-07-19/recent-integrated", AgeDays: 2, Classification: integrated},
	}

	m := New(git)
	deleted, err := m.Cleanup(ctx, 7, branches)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "user/archived/2026-07-19/old-integrated" {
		t.Fatalf("deleted = %v, want exactly [old-integrated]", deleted)
	}

	for _, name := range []string{"user/archived/2026-07-19/old-orphaned", "user/archived/2026-07-19/old-uncached", "user/archived/2026-07-19/recent-integrated"} {
		if _, err := git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name); err != nil {
			t.Errorf("%s should still exist: %v", name, err)
		}
	}
}

func TestParseArchiveDate(t *testing.T) {
	date, simple, ok := ParseArchiveDate("user/archived/2026-07-29/feature-auth", "user")
	if !ok || date != "2026-07-29" || simple != "feature-auth" {
		t.Errorf("got date=%q simple=%q ok=%v", date, simple, ok)
	}
	if _, _, ok := ParseArchiveDate("user/virtual/feature-auth", "user"); ok {
		t.Error("expected ok=false for a non-archive ref")
	}
}

func TestAgeDaysSince(t *testing.T) {
	if got := AgeDaysSince(0, 10*86400); got != 10 {
		t.Errorf("AgeDaysSince = %d, want 10", got)
	}
}
