// Package reader implements the commit reader: streaming the commit
// log between a baseline branch and HEAD, parsed from RS(0x1E)/US(0x1F)
// byte-framed records.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/branch-deck/branchdeck/internal/adapter/gitexec"
	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/sync/notes"
)

const recordSeparator = 0x1e

// Executor is the subset of gitexec.Invoker the reader needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteStreaming(ctx context.Context, handler gitexec.StreamHandler, args ...string) error
}

// Handler is called once per parsed commit, in oldest-first order.
type Handler func(domain.Commit) error

const prettyFormat = "--pretty=format:%H\x1f%B\x1f%an\x1f%ae\x1f%at\x1f%ct\x1f%P\x1f%T\x1f%N\x1e"

// ReadCommits streams commits strictly between baselineBranch and HEAD
// (oldest first, merges excluded) to handler. If the current branch equals
// baselineBranch and isn't a remote-tracking ref, the range starts at the
// repository's root commit instead (so a local-only clone without a
// baseline still has something to sync).
func ReadCommits(ctx context.Context, git Executor, baselineBranch string, handler Handler) error {
	currentBranch, err := git.Execute(ctx, "--no-pager", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return fmt.Errorf("resolve current branch: %w", err)
	}

	rangeSpec := baselineBranch + "..HEAD"
	if currentBranch == baselineBranch && !strings.Contains(baselineBranch, "/") {
		root, err := git.Execute(ctx, "--no-pager", "rev-list", "--max-parents=0", "HEAD")
		if err != nil {
			return fmt.Errorf("resolve root commit: %w", err)
		}
		rangeSpec = strings.TrimSpace(root) + "..HEAD"
	}

	args := []string{"--no-pager", "log", "--reverse", "--no-merges", "--notes=" + notes.IdentityRef, prettyFormat, rangeSpec}

	var buf []byte
	count := 0
	streamErr := git.ExecuteStreaming(ctx, func(chunk []byte) error {
		buf = append(buf, chunk...)
		for {
			idx := bytes.IndexByte(buf, recordSeparator)
			if idx < 0 {
				break
			}
			record := buf[:idx]
			buf = buf[idx+1:]
			if len(record) == 0 {
				continue
			}
			commit, err := parseSingleCommit(string(record))
			if err != nil {
				slog.Default().Warn("failed to parse commit record", "error", err)
				continue
			}
			count++
			if err := handler(commit); err != nil {
				return err
			}
		}
		return nil
	}, args...)
	if streamErr != nil {
		return streamErr
	}

	if trimmed := bytes.TrimSpace(buf); len(trimmed) > 0 {
		if commit, err := parseSingleCommit(string(trimmed)); err == nil {
			count++
			if err := handler(commit); err != nil {
				return err
			}
		} else {
			slog.Default().Warn("failed to parse final commit record", "error", err)
		}
	}

	slog.Default().Debug("streamed commits ahead of baseline",
		"commits", count, "branch", baselineBranch, "current_branch", currentBranch, "range", rangeSpec)
	return nil
}

// ReadCommitsList is a convenience wrapper collecting all commits into a slice.
func ReadCommitsList(ctx context.Context, git Executor, baselineBranch string) ([]domain.Commit, error) {
	var commits []domain.Commit
	err := ReadCommits(ctx, git, baselineBranch, func(c domain.Commit) error {
		commits = append(commits, c)
		return nil
	})
	return commits, err
}


// parseSingleCommit parses one US-delimited record into a Commit.
func parseSingleCommit(record string) (domain.Commit, error) {
	fields := strings.SplitN(record, "\x1f", 9)
	if len(fields) < 8 {
		return domain.Commit{}, fmt.Errorf("commit record has %d fields, want at least 8", len(fields))
	}

	id := strings.TrimSpace(fields[0])
	messageField := fields[1]
	authorName := fields[2]
	authorEmail := fields[3]
	authorTsField := fields[4]
	committerTsField := fields[5]
	parentsField := fields[6]
	treeID := fields[7]
	var noteField string
	if len(fields) > 8 {
		noteField = fields[8]
	}

	subject, _, _ := strings.Cut(messageField, "\n")
	message := strings.TrimSpace(messageField)

	authorTs, err := strconv.ParseUint(strings.TrimSpace(authorTsField), 10, 32)
	if err != nil {
		return domain.Commit{}, fmt.Errorf("parse author timestamp %q: %w", authorTsField, err)
	}
	committerTs, err := strconv.ParseUint(strings.TrimSpace(committerTsField), 10, 32)
	if err != nil {
		return domain.Commit{}, fmt.Errorf("parse committer timestamp %q: %w", committerTsField, err)
	}

	var parentID string
	if fields := strings.Fields(parentsField); len(fields) > 0 {
		parentID = fields[0]
	}

	var note, mappedID string
	if trimmed := strings.TrimSpace(noteField); trimmed != "" {
		note = trimmed
		if mapped, ok := strings.CutPrefix(trimmed, notes.IdentityNotePrefix); ok {
			mappedID = strings.TrimSpace(mapped)
		}
	}

	return domain.Commit{
		ID:                 id,
		Subject:            subject,
		StrippedSubject:    subject,
		Message:            message,
		AuthorName:         authorName,
		AuthorEmail:        authorEmail,
		AuthorTimestamp:    uint32(authorTs),
		CommitterTimestamp: uint32(committerTs),
		ParentID:           parentID,
		TreeID:             strings.TrimSpace(treeID),
		Note:               note,
		MappedCommitID:     mappedID,
	}, nil
}
