// Package notes implements the commit-identity notes store and the
// integration-detection cache: two independent git-notes namespaces
// sharing the same read/write primitives.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/branch-deck/branchdeck/internal/domain"
)

// IdentityRef is the git-notes namespace storing original -> rewritten
// commit identity mappings, one note per original commit, payload
// "v-commit-v1:{new_oid}".
const IdentityRef = "refs/notes/branch-deck/commits"

// DetectionRef is the git-notes namespace storing cached integration
// detection results, one note per virtual-branch tip commit.
const DetectionRef = "refs/notes/branch-deck/detection"

const detectionCacheVersion = 1

// IdentityNotePrefix tags an identity-map note's payload so readers of
// raw `%N` note output (e.g. the commit reader's own log invocation) can
// recognize it and extract the mapped commit id.
const IdentityNotePrefix = "v-commit-v1:"

// Executor is the subset of gitexec.Invoker the notes store needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteWithInput(ctx context.Context, input string, args ...string) (string, error)
}

// CommitNoteInfo is one pending identity-mapping write.
type CommitNoteInfo struct {
	OriginalOID string
	NewOID      string
}

// Store writes/reads both notes namespaces against one repository. The
// embedded mutex serializes all identity-note writes process-wide;
// detection-cache writes rely on git's own per-ref locking and don't
// need it.
type Store struct {
	git Executor
	mu  sync.Mutex
}

// New creates a Store for git.
func New(git Executor) *Store {
	return &Store{git: git}
}

// WriteIdentityBatch writes one identity note per entry under a single
// mutex acquisition: `git notes add` takes its own lock on the notes ref,
// but batching callers under one process-wide mutex avoids contention
// across concurrently processed branch groups.
func (s *Store) WriteIdentityBatch(ctx context.Context, entries []CommitNoteInfo) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		payload := IdentityNotePrefix + e.NewOID
		if _, err := s.git.Execute(ctx, "notes", "--ref", IdentityRef, "add", "-f", "-m", payload, e.OriginalOID); err != nil {
			return fmt.Errorf("write identity note for %s: %w", e.OriginalOID, err)
		}
	}
	return nil
}

// ReadIdentity returns the mapped commit id for commit, or "" if no note
// exists or it doesn't carry the expected prefix.
func (s *Store) ReadIdentity(ctx context.Context, commit string) string {
	out, err := s.git.Execute(ctx, "notes", "--ref", IdentityRef, "show", commit)
	if err != nil {
		return ""
	}
	mapped, ok := stripIdentityPrefix(out)
	if !ok {
		return ""
	}
	return mapped
}

func stripIdentityPrefix(note string) (string, bool) {
	if len(note) <= len(IdentityNotePrefix) || note[:len(IdentityNotePrefix)] != IdentityNotePrefix {
		return "", false
	}
	return note[len(IdentityNotePrefix):], true
}

// ReadDetectionCache reads and deserializes the cached IntegrationInfo for
// commit, returning ok == false on any miss or parse error (a detection
// cache is best-effort and always safe to recompute).
func (s *Store) ReadDetectionCache(ctx context.Context, commit string) (domain.IntegrationInfo, bool) {
	out, err := s.git.Execute(ctx, "notes", "--ref", DetectionRef, "show", commit)
	if err != nil {
		return domain.IntegrationInfo{}, false
	}
	info, err := deserializeDetectionCache(out)
	if err != nil {
		return domain.IntegrationInfo{}, false
	}
	return info, true
}

// BatchReadDetectionCache retrieves cached classifications for many commits
// in a single process invocation: `log --no-walk
// --format=%H\x1f%N\x1e --notes={ref} commit...`. Commits with no cached
// note, or a note that fails to parse, are simply absent from the result
// map rather than erroring.
func (s *Store) BatchReadDetectionCache(ctx context.Context, commits []string) (map[string]domain.IntegrationInfo, error) {
	result := make(map[string]domain.IntegrationInfo, len(commits))
	if len(commits) == 0 {
		return result, nil
	}

	args := append([]string{"log", "--no-walk", "--format=%H\x1f%N\x1e", "--notes=" + DetectionRef}, commits...)
	out, err := s.git.Execute(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("batch read detection cache: %w", err)
	}

	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		hash, note, ok := strings.Cut(record, "\x1f")
		if !ok || strings.TrimSpace(note) == "" {
			continue
		}
		info, err := deserializeDetectionCache(strings.TrimSpace(note))
		if err != nil {
			continue
		}
		result[strings.TrimSpace(hash)] = info
	}
	return result, nil
}

// WriteDetectionCache writes info for commit, unlocked: each write targets
// a distinct commit note, so git's own per-ref locking is sufficient.
func (s *Store) WriteDetectionCache(ctx context.Context, commit string, info domain.IntegrationInfo) error {
	payload, err := serializeDetectionCache(info)
	if err != nil {
		return fmt.Errorf("serialize detection cache: %w", err)
	}
	if _, err := s.git.Execute(ctx, "notes", "--ref", DetectionRef, "add", "-f", "-m", payload, commit); err != nil {
		return fmt.Errorf("write detection cache note: %w", err)
	}
	return nil
}

// detectionCacheEntry is the compact wire shape persisted in the detection
// notes namespace: short (one- to three-letter) field names keep notes small, with
// zero-valued/empty fields omitted.
type detectionCacheEntry struct {
	Version int                  `json:"v"`
	Status  detectionStatusEntry `json:"s"`
	Summary string               `json:"sum,omitempty"`
}

type detectionStatusEntry struct {
	Kind             string `json:"k"`
	Confidence       string `json:"c,omitempty"`
	CommitCount      uint32 `json:"cc,omitempty"`
	IntegratedAt     uint32 `json:"ia,omitempty"`
	TotalCommitCount uint32 `json:"tc,omitempty"`
	IntegratedCount  uint32 `json:"ic,omitempty"`
	OrphanedCount    uint32 `json:"oc,omitempty"`
	Missing          uint32 `json:"m,omitempty"`
}

func serializeDetectionCache(info domain.IntegrationInfo) (string, error) {
	status := detectionStatusEntry{}
	switch info.Kind {
	case domain.IntegrationIntegrated:
		status.Kind = "i"
		status.Confidence = map[domain.IntegrationConfidence]string{
			domain.ConfidenceExact: "e",
			domain.ConfidenceHigh:  "h",
		}[info.Confidence]
		status.CommitCount = info.CommitCount
		status.IntegratedAt = info.IntegratedAt
	case domain.IntegrationNotIntegrated:
		status.Kind = "n"
		status.TotalCommitCount = info.TotalCommitCount
		status.IntegratedCount = info.IntegratedCount
		status.OrphanedCount = info.OrphanedCount
		status.IntegratedAt = info.IntegratedAt
	case domain.IntegrationPartial:
		status.Kind = "p"
		status.Missing = info.Missing
	default:
		return "", fmt.Errorf("unknown integration kind %q", info.Kind)
	}

	entry := detectionCacheEntry{Version: detectionCacheVersion, Status: status, Summary: info.Summary}
	b, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func deserializeDetectionCache(payload string) (domain.IntegrationInfo, error) {
	var entry detectionCacheEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return domain.IntegrationInfo{}, err
	}

	info := domain.IntegrationInfo{Summary: entry.Summary}
	switch entry.Status.Kind {
	case "i":
		info.Kind = domain.IntegrationIntegrated
		info.CommitCount = entry.Status.CommitCount
		info.IntegratedAt = entry.Status.IntegratedAt
		switch entry.Status.Confidence {
		case "e":
			info.Confidence = domain.ConfidenceExact
		default:
			// Defaults to High for backward compatibility with caches
			// written before the confidence field existed.
			info.Confidence = domain.ConfidenceHigh
		}
	case "n":
		info.Kind = domain.IntegrationNotIntegrated
		info.TotalCommitCount = entry.Status.TotalCommitCount
		info.IntegratedCount = entry.Status.IntegratedCount
		info.OrphanedCount = entry.Status.OrphanedCount
		info.IntegratedAt = entry.Status.IntegratedAt
	case "p":
		info.Kind = domain.IntegrationPartial
		info.Missing = entry.Status.Missing
	default:
		return domain.IntegrationInfo{}, fmt.Errorf("unknown status kind %q", entry.Status.Kind)
	}
	return info, nil
}
