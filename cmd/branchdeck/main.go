// Command branchdeck is the CLI entrypoint: a thin cobra shell around the
// sync engine and the worktree helpers, printing the event stream and
// status output to stdout. Root command with subcommand factory
// functions, flags bound per subcommand, RunE delegating to a
// run<Name> function.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/branch-deck/branchdeck/internal/adapter/gitexec"
	"github.com/branch-deck/branchdeck/internal/sync/engine"
	"github.com/branch-deck/branchdeck/internal/sync/events"
	"github.com/branch-deck/branchdeck/internal/sync/worktree"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "branchdeck",
		Short:   "Stack linear commits into independent, reviewable branches",
		Long:    `branchdeck groups the commits ahead of a baseline branch by an issue-key prefix in their subject and keeps one virtual branch in sync per group, cherry-picking, detecting conflicts, and archiving branches once their commits land upstream.`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("repo", ".", "path to the git repository")
	rootCmd.AddCommand(syncCmd(), statusCmd(), archiveCmd(), cleanupCmd(), amendCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func repoPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("repo")
	return path
}

// jsonLineSink prints each event as one JSON object per line, so the
// output can be piped into another process without buffering the whole run.
func jsonLineSink() events.Sink {
	enc := json.NewEncoder(os.Stdout)
	return func(e events.Event) {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintf(os.Stderr, "encode event: %v\n", err)
		}
	}
}

func syncCmd() *cobra.Command {
	var prefix, baseline, email string
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Group commits ahead of the baseline and sync one branch per group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(repoPath(cmd), prefix, baseline, email, retentionDays)
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "branch prefix (defaults to branchdeck.branchPrefix)")
	cmd.Flags().StringVarP(&baseline, "baseline", "b", "master", "preferred baseline branch")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email used to scope \"my unpushed commits\" in remote status")
	cmd.Flags().IntVarP(&retentionDays, "retention-days", "r", 0, "delete archived branches past this age once classified as integrated (0 disables cleanup)")

	return cmd
}

func runSync(repo, prefix, baseline, email string, retentionDays int) error {
	e, err := engine.New(repo)
	if err != nil {
		return err
	}
	ctx := context.Background()
	return e.Sync(ctx, engine.Options{
		BranchPrefix:         prefix,
		PreferredBaseline:    baseline,
		MyEmail:              email,
		ArchiveRetentionDays: retentionDays,
	}, jsonLineSink())
}

func archiveCmd() *cobra.Command {
	var prefix, baseline string
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Detect integrated virtual branches and archive them, without a full sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine.New(repoPath(cmd))
			if err != nil {
				return err
			}
			return e.ArchiveInactive(context.Background(), engine.Options{
				BranchPrefix:         prefix,
				PreferredBaseline:    baseline,
				ArchiveRetentionDays: retentionDays,
			}, jsonLineSink())
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "branch prefix (defaults to branchdeck.branchPrefix)")
	cmd.Flags().StringVarP(&baseline, "baseline", "b", "master", "preferred baseline branch")
	cmd.Flags().IntVarP(&retentionDays, "retention-days", "r", 0, "delete archived branches past this age once classified as integrated (0 disables cleanup)")

	return cmd
}

func cleanupCmd() *cobra.Command {
	var prefix string
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete archived branches past retention using the cached integration classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine.New(repoPath(cmd))
			if err != nil {
				return err
			}
			return e.Cleanup(context.Background(), prefix, retentionDays)
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "branch prefix")
	cmd.Flags().IntVarP(&retentionDays, "retention-days", "r", 30, "delete archived branches older than this many days")
	cmd.MarkFlagRequired("prefix")

	return cmd
}

func statusCmd() *cobra.Command {
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List uncommitted changes, optionally with per-file diffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(repoPath(cmd), showDiff)
		},
	}

	cmd.Flags().BoolVarP(&showDiff, "diff", "d", false, "print each file's diff against HEAD")

	return cmd
}

func runStatus(repo string, showDiff bool) error {
	git := gitexec.New(repo)
	ctx := context.Background()

	entries, err := worktree.Status(ctx, git)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("working tree clean")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%c%c %s\n", entry.StagedStatus, entry.UnstagedStatus, entry.Path)
		if showDiff {
			diff, err := worktree.Diff(ctx, git, entry.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  diff %s: %v\n", entry.Path, err)
				continue
			}
			fmt.Println(diff)
		}
	}
	return nil
}

func amendCmd() *cobra.Command {
	var target string
	var drop []string

	cmd := &cobra.Command{
		Use:   "amend",
		Short: "Replace a commit's tree with the staged index and drop other commits from HEAD's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			git := gitexec.New(repoPath(cmd))
			newHead, err := worktree.Amend(context.Background(), git, worktree.AmendParams{
				TargetHash: target,
				DropHashes: drop,
			})
			if err != nil {
				return err
			}
			fmt.Println(newHead)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "commit whose tree is replaced with the staged index")
	cmd.Flags().StringArrayVar(&drop, "drop", nil, "commit to remove entirely from history (repeatable)")
	cmd.MarkFlagRequired("target")

	return cmd
}
