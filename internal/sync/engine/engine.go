// Package engine wires the commit reader, grouper, cherry-pick pipeline,
// integration detector, and archive manager into a single top-level sync
// entry point: it owns the process-wide collaborators every branch task
// shares (the git invoker, the notes store, the archive manager), creates
// a fresh tree-id cache for each Sync run, and drives commit reading, grouping, concurrent
// per-branch processing, integration detection, and archive lifecycle,
// reporting everything through one ordered event stream.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/branch-deck/branchdeck/internal/adapter/gitconfig"
	"github.com/branch-deck/branchdeck/internal/adapter/gitexec"
	"github.com/branch-deck/branchdeck/internal/domain"
	"github.com/branch-deck/branchdeck/internal/domain/syncerror"
	"github.com/branch-deck/branchdeck/internal/sync/archive"
	"github.com/branch-deck/branchdeck/internal/sync/branchproc"
	"github.com/branch-deck/branchdeck/internal/sync/events"
	"github.com/branch-deck/branchdeck/internal/sync/grouper"
	"github.com/branch-deck/branchdeck/internal/sync/integration"
	"github.com/branch-deck/branchdeck/internal/sync/notes"
	"github.com/branch-deck/branchdeck/internal/sync/reader"
	"github.com/branch-deck/branchdeck/internal/sync/remotestatus"
	"github.com/branch-deck/branchdeck/internal/sync/treecache"
	"github.com/branch-deck/branchdeck/internal/ui"
)

// Engine is the process-wide sync context: one instance owns every
// cross-task collaborator for a single repository and can run any number
// of Sync/Archive/Cleanup calls against it.
type Engine struct {
	RepoPath string

	git       *gitexec.Invoker
	config    *gitconfig.Manager
	notes     *notes.Store
	treeCache *treecache.Cache
	archive   *archive.Manager
}

// New builds an Engine rooted at repoPath, discovering and
// version-checking the git executable to use (see gitexec.Discover).
func New(repoPath string) (*Engine, error) {
	git, err := gitexec.Discover(repoPath)
	if err != nil {
		return nil, fmt.Errorf("discover git executable: %w", err)
	}
	return &Engine{
		RepoPath:  repoPath,
		git:       git,
		config:    gitconfig.New(git),
		notes:     notes.New(git),
		treeCache: treecache.New(),
		archive:   archive.New(git),
	}, nil
}

// Options parameterizes one Sync invocation.
type Options struct {
	// BranchPrefix overrides "branchdeck.branchPrefix" from git config when
	// non-empty.
	BranchPrefix string
	// PreferredBaseline is the local branch name baseline resolution
	// prefers (e.g. "master"); ResolveBaseline first tries
	// "origin/{PreferredBaseline}", then the local branch of that name.
	PreferredBaseline string
	// MyEmail scopes "my unpushed commits" counting in the remote-status
	// report.
	MyEmail string
	// ArchiveRetentionDays is how old an archived branch must be, with a
	// cached Integrated classification, before Cleanup deletes it.
	ArchiveRetentionDays int
}

// Sync runs one full synchronization pass: reads commits ahead of the
// resolved baseline, groups them, processes every group concurrently
// (one goroutine per group key), then detects integration for branches
// that dropped out of the current grouping, archives the ones found
// integrated, and cleans up old archives past retention. Emits the full
// event stream through sink, terminating with exactly one Completed
// event on success.
//
// Errors that stop the run are returned from Sync: an unmet precondition
// (no branch prefix, no baseline), a failure reading the branch prefix or
// the commit list, or a canceled branch-processing pass. Branch-level
// failures (conflicts, git-invocation errors scoped to one branch) and
// integration/archive-pass failures are reported on the event stream and
// do not abort the run.
func (e *Engine) Sync(ctx context.Context, opts Options, sink events.Sink) error {
	reporter := events.NewReporter(sink)

	if data, ok := ui.LoadIssueNavigationConfig(e.RepoPath); ok {
		reporter.Report(events.Event{Type: events.TypeIssueNavigationConfig, Data: data})
	}

	prefix := opts.BranchPrefix
	if prefix == "" {
		configured, err := e.config.BranchPrefix(ctx)
		if err != nil {
			return syncerror.New(syncerror.KindFatal, "read branchdeck.branchPrefix", err)
		}
		prefix = strings.TrimSpace(configured)
	}
	if prefix == "" {
		return syncerror.New(syncerror.KindPrecondition, "branchdeck.branchPrefix is not configured", nil)
	}

	preferred := opts.PreferredBaseline
	if preferred == "" {
		preferred = "master"
	}
	baseline, err := remotestatus.ResolveBaseline(ctx, e.git, preferred)
	if err != nil {
		return syncerror.New(syncerror.KindPrecondition, "resolve baseline branch", err)
	}

	commits, err := reader.ReadCommitsList(ctx, e.git, baseline)
	if err != nil {
		return syncerror.New(syncerror.KindGitInvocation, "read commit list", err)
	}

	g := grouper.New()
	for _, c := range commits {
		g.Add(c)
	}
	grouped := g.Finish()

	finalNames := make([]string, 0, len(grouped.Order))
	for _, name := range grouped.Order {
		final, err := domain.ToFinalBranchName(prefix, name)
		if err != nil {
			continue
		}
		finalNames = append(finalNames, final)
	}
	reporter.Report(events.Event{
		Type: events.TypeBranchesGrouped,
		Data: events.BranchesGroupedData{Branches: finalNames, Baseline: baseline},
	})

	if len(grouped.Unassigned) > 0 {
		reporter.Report(events.Event{
			Type: events.TypeUnassignedCommits,
			Data: events.UnassignedCommitsData{Commits: grouped.Unassigned},
		})
	}

	deps := branchproc.Deps{Git: e.git, TreeCache: treecache.New(), Notes: e.notes, Reporter: reporter}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range grouped.Order {
		name := name
		branchCommits := grouped.Groups[name]
		eg.Go(func() error {
			branchproc.Process(egCtx, deps, branchproc.Params{
				Prefix:         prefix,
				BaselineBranch: baseline,
				MyEmail:        opts.MyEmail,
				Group: domain.GroupedBranch{
					Name:    name,
					Commits: branchCommits,
					MyEmail: opts.MyEmail,
				},
			})
			return nil
		})
	}
	// Branch tasks never return an error (failures are reported on the
	// stream), so Wait only surfaces a context cancellation.
	if err := eg.Wait(); err != nil {
		return syncerror.New(syncerror.KindFatal, "branch processing canceled", err)
	}

	strategy := gitconfig.ReadDetectionStrategy()
	active := make(map[string]struct{}, len(finalNames))
	for _, n := range finalNames {
		active[n] = struct{}{}
	}
	if err := e.detectAndArchiveInactive(ctx, reporter, prefix, baseline, active, strategy, opts.ArchiveRetentionDays); err != nil {
		reporter.Report(events.Event{
			Type: events.TypeBranchStatusUpdate,
			Data: events.BranchStatusUpdateData{Status: domain.BranchError, Error: errPtr(events.GenericError("integration/archive pass: %v", err))},
		})
	}

	reporter.Report(events.Event{Type: events.TypeCompleted, Data: events.CompletedData{}})
	return nil
}

// ArchiveInactive runs the integration-detection and archive pass on its
// own, outside a full Sync: every branch currently present under
// "{prefix}/virtual/*" is treated as a candidate (there is no just-computed
// grouping to call "active"), classified, and archived if integrated.
// Useful for a standalone sweep after merges landed through another tool.
func (e *Engine) ArchiveInactive(ctx context.Context, opts Options, sink events.Sink) error {
	reporter := events.NewReporter(sink)

	prefix := opts.BranchPrefix
	if prefix == "" {
		configured, err := e.config.BranchPrefix(ctx)
		if err != nil {
			return syncerror.New(syncerror.KindFatal, "read branchdeck.branchPrefix", err)
		}
		prefix = strings.TrimSpace(configured)
	}
	if prefix == "" {
		return syncerror.New(syncerror.KindPrecondition, "branchdeck.branchPrefix is not configured", nil)
	}

	preferred := opts.PreferredBaseline
	if preferred == "" {
		preferred = "master"
	}
	baseline, err := remotestatus.ResolveBaseline(ctx, e.git, preferred)
	if err != nil {
		return syncerror.New(syncerror.KindPrecondition, "resolve baseline branch", err)
	}

	strategy := gitconfig.ReadDetectionStrategy()
	if err := e.detectAndArchiveInactive(ctx, reporter, prefix, baseline, nil, strategy, opts.ArchiveRetentionDays); err != nil {
		return syncerror.New(syncerror.KindGitInvocation, "integration/archive pass", err)
	}
	reporter.Report(events.Event{Type: events.TypeCompleted, Data: events.CompletedData{}})
	return nil
}

// Cleanup deletes archived branches past retentionDays whose cached
// integration classification allows it, without running detection first
// (it only consults whatever the notes-backed detection cache already
// holds for each archived tip).
func (e *Engine) Cleanup(ctx context.Context, prefix string, retentionDays int) error {
	return e.cleanupArchives(ctx, prefix, retentionDays)
}

// detectAndArchiveInactive classifies every local "{prefix}/virtual/*"
// branch absent from active, archives the ones found Integrated, and
// deletes archives past retention whose cached classification allows it.
func (e *Engine) detectAndArchiveInactive(ctx context.Context, reporter *events.Reporter, prefix, baseline string, active map[string]struct{}, strategy gitconfig.DetectionStrategy, retentionDays int) error {
	virtualPrefix := prefix + "/virtual/"
	lines, err := e.git.ExecuteLines(ctx, "for-each-ref", "--format=%(refname:short) %(objectname)", "refs/heads/"+virtualPrefix)
	if err != nil {
		return fmt.Errorf("list virtual branches: %w", err)
	}

	type inactiveBranch struct {
		full   string
		simple string
		sha    string
	}
	var inactive []inactiveBranch
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		full, sha := fields[0], fields[1]
		if _, isActive := active[full]; isActive {
			continue
		}
		inactive = append(inactive, inactiveBranch{full: full, simple: strings.TrimPrefix(full, virtualPrefix), sha: sha})
	}

	var archivePairs []archive.RenamePair
	for _, b := range inactive {
		info, err := integration.Detect(ctx, e.git, b.full, baseline, strategy)
		if err != nil {
			continue
		}
		_ = e.notes.WriteDetectionCache(ctx, b.sha, info)
		reporter.Report(events.Event{Type: events.TypeBranchIntegrationFound, Data: events.BranchIntegrationDetectedData{Info: info}})

		if info.Kind == domain.IntegrationIntegrated {
			archivePairs = append(archivePairs, archive.RenamePair{From: b.full, Simple: b.simple, SHA: b.sha})
		}
	}

	if len(archivePairs) > 0 {
		date := time.Now().UTC().Format("2006-01-02")
		result, err := e.archive.BatchArchive(ctx, prefix, date, archivePairs)
		if err != nil {
			return fmt.Errorf("batch archive: %w", err)
		}
		names := make([]string, 0, len(result))
		for _, archived := range result {
			names = append(names, archived)
		}
		reporter.Report(events.Event{Type: events.TypeArchivedBranchesFound, Data: events.ArchivedBranchesFoundData{Names: names}})
	}

	if retentionDays > 0 {
		return e.cleanupArchives(ctx, prefix, retentionDays)
	}
	return nil
}

// cleanupArchives lists every archived branch, batch-fetches cached
// classifications for their tips, and deletes the ones past retention
// with an Integrated cache entry.
func (e *Engine) cleanupArchives(ctx context.Context, prefix string, retentionDays int) error {
	archivePrefix := prefix + "/archived/"
	lines, err := e.git.ExecuteLines(ctx, "for-each-ref", "--format=%(refname:short) %(objectname) %(committerdate:unix)", "refs/heads/"+archivePrefix)
	if err != nil {
		return fmt.Errorf("list archived branches: %w", err)
	}

	var shas []string
	type entry struct {
		name string
		sha  string
		at   uint32
	}
	var entries []entry
	now := uint32(time.Now().Unix())
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		var at uint64
		fmt.Sscanf(fields[2], "%d", &at)
		entries = append(entries, entry{name: fields[0], sha: fields[1], at: uint32(at)})
		shas = append(shas, fields[1])
	}
	if len(entries) == 0 {
		return nil
	}

	cache, err := e.notes.BatchReadDetectionCache(ctx, shas)
	if err != nil {
		return fmt.Errorf("batch read detection cache: %w", err)
	}

	branches := make([]archive.ArchivedBranch, 0, len(entries))
	for _, en := range entries {
		var classification *domain.IntegrationInfo
		if info, ok := cache[en.sha]; ok {
			classification = &info
		}
		branches = append(branches, archive.ArchivedBranch{
			Name:           en.name,
			AgeDays:        archive.AgeDaysSince(en.at, now),
			Classification: classification,
		})
	}

	_, err = e.archive.Cleanup(ctx, retentionDays, branches)
	return err
}

func errPtr(p events.ErrorPayload) *events.ErrorPayload { return &p }
