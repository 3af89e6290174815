package domain

// FileDiff is a unified-diff rendering of a single file, produced by the
// conflict analyzer using sergi/go-diff. Hunks holds one or more
// unified-diff text blocks.
type FileDiff struct {
	OldFile FileInfo
	NewFile FileInfo
	Hunks   []string
}

// FileInfo names and types a file blob for diff rendering.
type FileInfo struct {
	FileName string
	FileLang string
	Content  string
}

// ConflictDetail describes one conflicted file within a MergeConflictInfo.
type ConflictDetail struct {
	File             string
	Status           string // "modified", "added", "deleted"
	FileDiff         FileDiff
	BaseFile         *FileInfo
	TargetFile       *FileInfo
	CherryFile       *FileInfo
	BaseToTargetDiff FileDiff
	BaseToCherryDiff FileDiff
}

// CommitRef is a minimal commit identity used inside conflict reports, for
// referencing the commit/parent/target branch head involved in a conflict,
// or any commit surfaced by the conflict analysis (merge base, missing
// commit, conflict-marker commit).
type CommitRef struct {
	Hash            string
	Subject         string
	Message         string
	AuthorName      string
	AuthorTimestamp uint32
	CommitterTime   uint32
}

// MissingCommit is a commit reachable from the cherry's original parent but
// not from the target branch that touched at least one of the conflicting
// paths.
type MissingCommit struct {
	CommitRef
	FilesTouched []string
}

// ConflictAnalysis is the conflict-attribution report computed by the
// conflict analyzer once a cherry-pick conflicts: the nearest common
// ancestor of the cherry's parent and the target, a divergence summary, the
// commits on the source side that likely explain the conflict, and a table
// of every commit referenced anywhere in the analysis for display.
type ConflictAnalysis struct {
	MergeBase               CommitRef
	CommitsAheadSource      uint32 // reachable from the cherry's parent, not from target
	CommitsAheadTarget      uint32 // reachable from target, not from the cherry's parent
	CommonAncestorDistance  uint32 // commits between MergeBase and the cherry's parent
	MissingCommits          []MissingCommit
	ConflictMarkerCommits   map[string]CommitRef
}

// MergeConflictInfo is the full conflict report attached to a CommitError
// event when a cherry-pick can't be completed cleanly.
type MergeConflictInfo struct {
	Commit           CommitRef
	OriginalParent   CommitRef
	TargetBranchHead CommitRef
	ConflictingFiles []ConflictDetail
	ConflictSummary  string
	Analysis         ConflictAnalysis
}
