// Package archive implements the archive manager: renaming integrated
// virtual branches into a dated, collision-safe archive namespace,
// batch-archiving many at once, and deleting stale archives whose cached
// classification says they're safe to drop.
package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/branch-deck/branchdeck/internal/domain"
)

// singleRenameBound and batchRenameBound cap the numeric-suffix collision
// search so a pathological run of same-day collisions can't loop forever.
// Hitting the bound is a hard error here rather than a logged warning, to
// avoid silently dropping a branch from the archive.
const (
	singleRenameBound = 1000
	batchRenameBound  = 100
)

// Executor is the subset of gitexec.Invoker the archive manager needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
	ExecuteLines(ctx context.Context, args ...string) ([]string, error)
	ExecuteWithInput(ctx context.Context, input string, args ...string) (string, error)
}

// Manager owns the process-wide archive mutex serializing every
// rename/create/delete flow against the archive ref namespace: refs
// under "{prefix}/archived/{date}/..." require Git to create
// intermediate directories in .git/refs, which races across concurrent
// branch tasks without a lock.
type Manager struct {
	git Executor
	mu  sync.Mutex
}

// New creates a Manager for git.
func New(git Executor) *Manager {
	return &Manager{git: git}
}

// targetArchiveName builds "{prefix}/archived/{date}/{simple}", appending
// "-{N}" starting at 1 until a name not in existing (refs already known to
// be taken, including ones archived earlier today in the same batch) is
// found, bounded by maxSuffix.
func targetArchiveName(prefix, date, simple string, existing map[string]struct{}, maxSuffix int) (string, error) {
	base := fmt.Sprintf("%s/archived/%s/%s", prefix, date, simple)
	if _, taken := existing[base]; !taken {
		return base, nil
	}
	for n := 1; n <= maxSuffix; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("archive name collision for %q exceeded %d suffixes", base, maxSuffix)
}

// refExists reports whether a local branch ref exists.
func (m *Manager) refExists(ctx context.Context, name string) bool {
	_, err := m.git.Execute(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// ensureArchiveDirectory makes Git materialize the "{prefix}/archived/{date}/"
// directory inside .git/refs/heads by creating and immediately deleting a
// throwaway branch inside it, working around Git's refusal to create a
// ref directly under a path with no existing sibling.
func (m *Manager) ensureArchiveDirectory(ctx context.Context, archivePrefix string) error {
	tmp := archivePrefix + "/_archive-temp"
	if _, err := m.git.Execute(ctx, "branch", tmp, "HEAD"); err != nil {
		return fmt.Errorf("create archive scaffold branch: %w", err)
	}
	if _, err := m.git.Execute(ctx, "branch", "-D", tmp); err != nil {
		return fmt.Errorf("remove archive scaffold branch: %w", err)
	}
	return nil
}

// RenameToArchive archives one branch ("{prefix}/virtual/{simple}",
// passed as fromBranchName without the "refs/heads/" prefix) under
// "{prefix}/archived/{date}/{simple}", resolving same-day name collisions
// with a numeric suffix. Returns the archive name used (without
// "refs/heads/").
func (m *Manager) RenameToArchive(ctx context.Context, prefix, date, fromBranchName, simpleName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := map[string]struct{}{}
	target, err := targetArchiveName(prefix, date, simpleName, existing, singleRenameBound)
	if err != nil {
		return "", err
	}
	for m.refExists(ctx, target) {
		existing[target] = struct{}{}
		target, err = targetArchiveName(prefix, date, simpleName, existing, singleRenameBound)
		if err != nil {
			return "", err
		}
	}

	archivePrefix := fmt.Sprintf("%s/archived/%s", prefix, date)
	if err := m.ensureArchiveDirectory(ctx, archivePrefix); err != nil {
		return "", err
	}

	if _, err := m.git.Execute(ctx, "branch", "-m", fromBranchName, target); err != nil {
		return "", fmt.Errorf("rename %s to %s: %w", fromBranchName, target, err)
	}
	return target, nil
}

// RenamePair is one branch to archive in a batch operation: From is the
// current "{prefix}/virtual/{simple}" name, Simple is the bare group name,
// SHA is the branch tip (needed for the atomic update-ref transaction).
type RenamePair struct {
	From   string
	Simple string
	SHA    string
}

// BatchArchiveResult maps each input RenamePair's From name to the archive
// name it was renamed to.
type BatchArchiveResult map[string]string

// BatchArchive archives many branches in one atomic update-ref
// transaction, resolving collisions against both pre-existing archive refs
// and names already assigned earlier in this same batch.
func (m *Manager) BatchArchive(ctx context.Context, prefix, date string, pairs []RenamePair) (BatchArchiveResult, error) {
	if len(pairs) == 0 {
		return BatchArchiveResult{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	archivePrefix := fmt.Sprintf("%s/archived/%s", prefix, date)
	if err := m.ensureArchiveDirectory(ctx, archivePrefix); err != nil {
		return nil, err
	}

	existing, err := m.listArchivedNames(ctx, prefix)
	if err != nil {
		return nil, err
	}

	result := make(BatchArchiveResult, len(pairs))
	var sb strings.Builder
	sb.WriteString("start\n")
	for _, p := range pairs {
		target, err := targetArchiveName(prefix, date, p.Simple, existing, batchRenameBound)
		if err != nil {
			return nil, err
		}
		existing[target] = struct{}{}
		result[p.From] = target

		fmt.Fprintf(&sb, "create refs/heads/%s %s\n", target, p.SHA)
		fmt.Fprintf(&sb, "delete refs/heads/%s %s\n", p.From, p.SHA)
	}
	sb.WriteString("commit\n")

	if _, err := m.git.ExecuteWithInput(ctx, sb.String(), "update-ref", "--stdin"); err != nil {
		return nil, fmt.Errorf("batch archive transaction: %w", err)
	}
	return result, nil
}

// listArchivedNames enumerates every existing archive ref under
// "{prefix}/archived/", stripped of "refs/heads/", for batch collision
// resolution.
func (m *Manager) listArchivedNames(ctx context.Context, prefix string) (map[string]struct{}, error) {
	lines, err := m.git.ExecuteLines(ctx, "for-each-ref", "--format=%(refname)", "refs/heads/"+prefix+"/archived/")
	if err != nil {
		return nil, fmt.Errorf("list archived refs: %w", err)
	}
	existing := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		existing[strings.TrimPrefix(line, "refs/heads/")] = struct{}{}
	}
	return existing, nil
}

// ArchivedBranch describes one branch under "{prefix}/archived/*" as input
// to Cleanup.
type ArchivedBranch struct {
	Name         string // "{prefix}/archived/{date}/{simple}", no refs/heads/
	AgeDays      int
	Classification *domain.IntegrationInfo // nil = no cached classification
}

// Cleanup deletes every archived branch older than retentionDays whose
// cached classification is Integrated, in one `branch -D` call; on
// failure it falls back to per-branch deletion and returns however many
// succeeded. Branches with no cached classification, or classified
// NotIntegrated/Partial, are preserved regardless of age.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int, branches []ArchivedBranch) ([]string, error) {
	var deletable []string
	for _, b := range branches {
		if b.AgeDays < retentionDays {
			continue
		}
		if b.Classification == nil || b.Classification.Kind != domain.IntegrationIntegrated {
			continue
		}
		deletable = append(deletable, b.Name)
	}
	if len(deletable) == 0 {
		return nil, nil
	}

	args := append([]string{"branch", "-D"}, deletable...)
	if _, err := m.git.Execute(ctx, args...); err == nil {
		return deletable, nil
	}

	var deleted []string
	for _, name := range deletable {
		if _, err := m.git.Execute(ctx, "branch", "-D", name); err == nil {
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}

// ParseArchiveDate extracts the "YYYY-MM-DD" date segment from an archive
// ref name "{prefix}/archived/{date}/{simple}", returning ok == false if
// the shape doesn't match.
func ParseArchiveDate(name, prefix string) (date, simple string, ok bool) {
	withoutPrefix := strings.TrimPrefix(name, prefix+"/archived/")
	if withoutPrefix == name {
		return "", "", false
	}
	parts := strings.SplitN(withoutPrefix, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	if len(parts[0]) != len("YYYY-MM-DD") || strings.Count(parts[0], "-") != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// daysBetweenUnix is a small helper kept free of time.Now()/time.Since()
// so callers (which must supply "now" explicitly — scripts computing
// retention windows can't call wall-clock time mid-run) can compute age
// deterministically in tests.
func daysBetweenUnix(earlier, later uint32) int {
	if later <= earlier {
		return 0
	}
	return int((later - earlier) / 86400)
}

// AgeDaysSince returns the age in whole days of a commit authored at
// committedAt, relative to nowUnix.
func AgeDaysSince(committedAt, nowUnix uint32) int {
	return daysBetweenUnix(committedAt, nowUnix)
}
