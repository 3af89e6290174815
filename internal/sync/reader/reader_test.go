package reader

import "testing"

func TestParseSingleCommit(t *testing.T) {
	record := "abc123\x1f(feature) add login\x1fAlice\x1falice@example.com\x1f1000\x1f1001\x1fparent1\x1ftree1\x1f"
	commit, err := parseSingleCommit(record)
	if err != nil {
		t.Fatalf("parseSingleCommit: %v", err)
	}
	if commit.ID != "abc123" {
		t.Errorf("ID = %q, want abc123", commit.ID)
	}
	if commit.Subject != "(feature) add login" {
		t.Errorf("Subject = %q", commit.Subject)
	}
	if commit.AuthorName != "Alice" || commit.AuthorEmail != "alice@example.com" {
		t.Errorf("author mismatch: %+v", commit)
	}
	if commit.AuthorTimestamp != 1000 || commit.CommitterTimestamp != 1001 {
		t.Errorf("timestamps mismatch: %+v", commit)
	}
	if commit.ParentID != "parent1" {
		t.Errorf("ParentID = %q", commit.ParentID)
	}
	if commit.TreeID != "tree1" {
		t.Errorf("TreeID = %q", commit.TreeID)
	}
}

func TestParseSingleCommit_MultilineAndNote(t *testing.T) {
	record := "abc123\x1f(feature) add login\nmore details\x1fAlice\x1falice@example.com\x1f1000\x1f1001\x1fp1 p2\x1ftree1\x1fv-commit-v1:deadbeef"
	commit, err := parseSingleCommit(record)
	if err != nil {
		t.Fatalf("parseSingleCommit: %v", err)
	}
	if commit.Subject != "(feature) add login" {
		t.Errorf("Subject = %q", commit.Subject)
	}
	if commit.Message != "(feature) add login\nmore details" {
		t.Errorf("Message = %q", commit.Message)
	}
	if commit.ParentID != "p1" {
		t.Errorf("ParentID should be first parent only, got %q", commit.ParentID)
	}
	if commit.MappedCommitID != "deadbeef" {
		t.Errorf("MappedCommitID = %q, want deadbeef", commit.MappedCommitID)
	}
}

func TestParseSingleCommit_NoParents(t *testing.T) {
	record := "root1\x1finitial commit\x1fAlice\x1falice@example.com\x1f1000\x1f1000\x1f\x1ftree1\x1f"
	commit, err := parseSingleCommit(record)
	if err != nil {
		t.Fatalf("parseSingleCommit: %v", err)
	}
	if commit.ParentID != "" {
		t.Errorf("ParentID = %q, want empty for root commit", commit.ParentID)
	}
}

func TestParseSingleCommit_MissingFields(t *testing.T) {
	if _, err := parseSingleCommit("abc\x1fonly two fields"); err == nil {
		t.Fatal("expected error for truncated record")
	}
}
