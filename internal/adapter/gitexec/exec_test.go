package gitexec

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=Tester", "GIT_AUTHOR_EMAIL=tester@example.com",
			"GIT_COMMITTER_NAME=Tester", "GIT_COMMITTER_EMAIL=tester@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q", "-b", "main")
	run("commit", "--allow-empty", "-q", "-m", "initial commit")
	return dir
}

func TestInvoker_Execute(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	out, err := inv.Execute(context.Background(), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "main" {
		t.Fatalf("want main, got %q", out)
	}
}

func TestInvoker_Execute_Error(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	if _, err := inv.Execute(context.Background(), "not-a-command"); err == nil {
		t.Fatal("expected error for invalid git subcommand")
	}
}

func TestInvoker_ExecuteWithStatus(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	out, code, err := inv.ExecuteWithStatus(context.Background(), "cat-file", "-e", "deadbeef")
	if err != nil {
		t.Fatalf("ExecuteWithStatus: %v", err)
	}
	if code == 0 {
		t.Fatal("expected non-zero exit for missing object")
	}
	if out == "" {
		t.Fatal("expected stderr content on failure")
	}
}

func TestInvoker_ExecuteLines(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	lines, err := inv.ExecuteLines(context.Background(), "log", "--pretty=format:%H")
	if err != nil {
		t.Fatalf("ExecuteLines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("want 1 commit line, got %d", len(lines))
	}
}

func TestInvoker_ExecuteStreaming(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	var collected strings.Builder
	err := inv.ExecuteStreaming(context.Background(), func(chunk []byte) error {
		collected.Write(chunk)
		return nil
	}, "log", "--pretty=format:%H")
	if err != nil {
		t.Fatalf("ExecuteStreaming: %v", err)
	}
	if collected.Len() != 40 {
		t.Fatalf("want 40-char hash, got %d bytes", collected.Len())
	}
}

func TestInvoker_ExecuteCounts(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	counts, err := inv.ExecuteCounts(context.Background(), "rev-list", "--left-right", "--count", "HEAD...HEAD")
	if err != nil {
		t.Fatalf("ExecuteCounts: %v", err)
	}
	if len(counts) != 2 || counts[0] != 0 || counts[1] != 0 {
		t.Fatalf("want [0 0], got %v", counts)
	}
}

func TestInvoker_SetGitPath(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)
	inv.SetGitPath(filepath.Join("/usr/bin", "git"))
	if _, err := inv.Execute(context.Background(), "rev-parse", "HEAD"); err != nil {
		t.Fatalf("Execute with explicit git path: %v", err)
	}
}

func TestInvoker_ExecuteWithInput(t *testing.T) {
	dir := initRepo(t)
	inv := New(dir)

	head, err := inv.Execute(context.Background(), "rev-parse", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse HEAD: %v", err)
	}

	input := "start\ncommit\n"
	if _, err := inv.ExecuteWithInput(context.Background(), input, "update-ref", "--stdin"); err != nil {
		t.Fatalf("ExecuteWithInput no-op transaction: %v", err)
	}
	if _, err := inv.Execute(context.Background(), "rev-parse", "HEAD"); err != nil {
		t.Fatalf("repo still valid after no-op transaction: %v", err)
	}
	_ = head
}
