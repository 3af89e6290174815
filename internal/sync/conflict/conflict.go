// Package conflict implements the conflict analyzer: rendering unified
// diffs between a conflict's base/ours/theirs blobs so a CommitError
// event can show exactly what collided, and attributing the conflict to
// the missing commit(s) that touched the conflicting paths. Diffs are rendered
// with github.com/sergi/go-diff/diffmatchpatch.
package conflict

import (
	"context"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/sync/cherrypick"
)

// BlobReader fetches file contents by blob oid (`git cat-file blob {oid}`).
type BlobReader interface {
	Execute(ctx context.Context, args ...string) (string, error)
}

// unifiedDiff renders a line-level unified diff between two text blobs
// using diffmatchpatch's line-mode diff, which is cheaper than a raw
// character diff for source-sized files and gives cleaner hunks.
func unifiedDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out string
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			out += prefixLines(d.Text, "-")
		case diffmatchpatch.DiffInsert:
			out += prefixLines(d.Text, "+")
		case diffmatchpatch.DiffEqual:
			out += prefixLines(d.Text, " ")
		}
	}
	return out
}

func prefixLines(text, prefix string) string {
	var out string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out += prefix + text[start:i+1]
			start = i + 1
		}
	}
	if start < len(text) {
		out += prefix + text[start:] + "\n"
	}
	return out
}

// readBlob fetches a blob's content by oid, returning "" for an empty oid
// (file absent on that side of the conflict).
func readBlob(ctx context.Context, git BlobReader, oid string) (string, error) {
	if oid == "" {
		return "", nil
	}
	return git.Execute(ctx, "cat-file", "blob", oid)
}

// AnalyzeConflictFile builds a ConflictDetail for one conflicting path,
// rendering base->ours and base->theirs diffs plus a combined conflict
// view. On any blob-read failure it degrades to an empty-fields detail
// rather than failing the whole analysis.
func AnalyzeConflictFile(ctx context.Context, git BlobReader, entry cherrypick.ConflictFileEntry) domain.ConflictDetail {
	base, _ := readBlob(ctx, git, entry.Base)
	ours, _ := readBlob(ctx, git, entry.Ours)
	theirs, _ := readBlob(ctx, git, entry.Theirs)

	status := "modified"
	switch {
	case entry.Base == "" && (entry.Ours != "" || entry.Theirs != ""):
		status = "added"
	case entry.Base != "" && entry.Ours == "" && entry.Theirs == "":
		status = "deleted"
	}

	combined := fmt.Sprintf("<<<<<<< ours\n%s=======\n%s>>>>>>> theirs\n", ours, theirs)

	return domain.ConflictDetail{
		File:   entry.Path,
		Status: status,
		FileDiff: domain.FileDiff{
			OldFile: domain.FileInfo{FileName: entry.Path, Content: base},
			NewFile: domain.FileInfo{FileName: entry.Path, Content: combined},
			Hunks:   []string{combined},
		},
		BaseFile:   blobInfo(entry.Path, entry.Base, base),
		TargetFile: blobInfo(entry.Path, entry.Ours, ours),
		CherryFile: blobInfo(entry.Path, entry.Theirs, theirs),
		BaseToTargetDiff: domain.FileDiff{
			OldFile: domain.FileInfo{FileName: entry.Path, Content: base},
			NewFile: domain.FileInfo{FileName: entry.Path, Content: ours},
			Hunks:   []string{unifiedDiff(base, ours)},
		},
		BaseToCherryDiff: domain.FileDiff{
			OldFile: domain.FileInfo{FileName: entry.Path, Content: base},
			NewFile: domain.FileInfo{FileName: entry.Path, Content: theirs},
			Hunks:   []string{unifiedDiff(base, theirs)},
		},
	}
}

func blobInfo(path, oid, content string) *domain.FileInfo {
	if oid == "" {
		return nil
	}
	return &domain.FileInfo{FileName: path, Content: content}
}

// AnalyzeConflicts renders a ConflictDetail for every conflicting entry.
func AnalyzeConflicts(ctx context.Context, git BlobReader, entries []cherrypick.ConflictFileEntry) []domain.ConflictDetail {
	details := make([]domain.ConflictDetail, 0, len(entries))
	for _, entry := range entries {
		details = append(details, AnalyzeConflictFile(ctx, git, entry))
	}
	return details
}
