// Package domain holds branchdeck's core value types: small, validated
// structs with constructor functions.
package domain

// Commit is one entry from the commit log between the baseline branch and
// HEAD, carrying both the raw git metadata and the fields the grouper /
// cherry-pick engine derive from it.
type Commit struct {
	ID                 string
	Subject            string
	StrippedSubject    string
	Message            string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    uint32
	CommitterTimestamp uint32
	ParentID           string
	TreeID             string
	Note               string
	MappedCommitID     string
}

// HasMappedCommit reports whether a prior sync already recorded an identity
// mapping for this commit via git notes.
func (c Commit) HasMappedCommit() bool {
	return c.MappedCommitID != ""
}

// GroupedBranch is one prefix/issue-key group of commits destined for a
// single virtual branch.
type GroupedBranch struct {
	Name                       string
	Commits                    []Commit
	LatestCommitTime           uint32
	Summary                    string
	AllCommitsHaveIssueRef     bool
	MyEmail                    string
}

// BranchSyncStatus is the lifecycle state of a virtual branch ref update.
type BranchSyncStatus string

const (
	BranchCreated           BranchSyncStatus = "created"
	BranchUpdated           BranchSyncStatus = "updated"
	BranchUnchanged         BranchSyncStatus = "unchanged"
	BranchError             BranchSyncStatus = "error"
	BranchMergeConflict     BranchSyncStatus = "merge_conflict"
	BranchAnalyzingConflict BranchSyncStatus = "analyzing_conflict"
)

// CommitSyncStatus is the lifecycle state of a single cherry-picked commit.
type CommitSyncStatus string

const (
	CommitPending   CommitSyncStatus = "pending"
	CommitCreated   CommitSyncStatus = "created"
	CommitUnchanged CommitSyncStatus = "unchanged"
	CommitErrored   CommitSyncStatus = "error"
	CommitBlocked   CommitSyncStatus = "blocked"
)
