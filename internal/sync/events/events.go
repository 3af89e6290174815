// Package events defines the sync engine's outbound event stream: a
// discriminated union of progress/result events, marshaled as a common
// {"type": "...", "data": {...}} envelope, one struct per variant.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/branch-deck/branchdeck/internal/domain"
)

// Type discriminates an Event's Data payload.
type Type string

const (
	TypeIssueNavigationConfig   Type = "issue_navigation_config"
	TypeBranchesGrouped         Type = "branches_grouped"
	TypeUnassignedCommits       Type = "unassigned_commits"
	TypeCommitSynced            Type = "commit_synced"
	TypeCommitError             Type = "commit_error"
	TypeCommitsBlocked          Type = "commits_blocked"
	TypeBranchStatusUpdate      Type = "branch_status_update"
	TypeBranchIntegrationFound  Type = "branch_integration_detected"
	TypeArchivedBranchesFound   Type = "archived_branches_found"
	TypeRemoteStatusUpdate      Type = "remote_status_update"
	TypeCompleted               Type = "completed"
)

// Event is the wire envelope: Type names the variant, Data holds one of
// the payload structs below.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// MarshalJSON renders {"type": "...", "data": {...}}.
func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type Type `json:"type"`
		Data any  `json:"data"`
	}
	return json.Marshal(wire{Type: e.Type, Data: e.Data})
}

// IssueLink is one issue-tracker navigation pattern read from .idea/vcs.xml.
type IssueLink struct {
	IssueRegexp string `json:"issueRegexp"`
	LinkRegexp  string `json:"linkRegexp"`
}

// IssueNavigationConfigData reports the issue-navigation links configured
// for the repository, if any, emitted once up front.
type IssueNavigationConfigData struct {
	Links []IssueLink `json:"links"`
}

// BranchesGroupedData reports the result of grouping: every virtual
// branch the sync will process, plus the baseline branch it was computed
// against. Emitted exactly once, before any branch-specific event.
type BranchesGroupedData struct {
	Branches []string `json:"branches"`
	Baseline string   `json:"baseline"`
}

// UnassignedCommitsData reports commits that matched no group key.
type UnassignedCommitsData struct {
	Commits []domain.Commit `json:"commits"`
}

// CommitSyncedData reports one successfully processed commit.
type CommitSyncedData struct {
	Branch        string                  `json:"branch"`
	OriginalHash  string                  `json:"originalHash"`
	NewHash       string                  `json:"newHash"`
	Status        domain.CommitSyncStatus `json:"status"`
}

// ErrorPayload is either a plain message or a structured merge conflict
// report.
type ErrorPayload struct {
	Generic  string                    `json:"generic,omitempty"`
	Conflict *domain.MergeConflictInfo `json:"mergeConflict,omitempty"`
}

// CommitErrorData reports that one commit in branch could not be applied.
type CommitErrorData struct {
	Branch string       `json:"branch"`
	Hash   string       `json:"hash"`
	Error  ErrorPayload `json:"error"`
}

// CommitsBlockedData reports the remaining commits in branch that were
// never attempted because an earlier commit errored.
type CommitsBlockedData struct {
	Branch           string   `json:"branch"`
	RemainingHashes  []string `json:"remainingHashes"`
}

// BranchStatusUpdateData reports the current lifecycle state of a virtual
// branch's ref update.
type BranchStatusUpdateData struct {
	Branch string                  `json:"branch"`
	Status domain.BranchSyncStatus `json:"status"`
	Error  *ErrorPayload           `json:"error,omitempty"`
}

// BranchIntegrationDetectedData reports an inactive virtual branch's
// integration classification.
type BranchIntegrationDetectedData struct {
	Info domain.IntegrationInfo `json:"info"`
}

// ArchivedBranchesFoundData reports the archive branch names created by
// the archive pass that just ran; archives from earlier runs are not listed.
type ArchivedBranchesFoundData struct {
	Names []string `json:"names"`
}

// RemoteStatusUpdateData reports ahead/behind and "my unpushed" counts for
// one virtual branch against its remote-tracking counterpart.
type RemoteStatusUpdateData struct {
	Branch          string   `json:"branch"`
	RemoteExists    bool     `json:"remoteExists"`
	UnpushedCommits []string `json:"unpushedCommits"`
	CommitsBehind   uint32   `json:"commitsBehind"`
	MyUnpushedCount uint32   `json:"myUnpushedCount"`
	LastPushTime    uint32   `json:"lastPushTime"`
}

// CompletedData is the terminal event, emitted once by a run that finishes
// without returning an error; a run that returns an error emits none.
type CompletedData struct{}

// GenericError builds an Event-ready ErrorPayload from a plain message.
func GenericError(format string, args ...any) ErrorPayload {
	return ErrorPayload{Generic: fmt.Sprintf(format, args...)}
}

// ConflictError builds an Event-ready ErrorPayload carrying a structured
// merge conflict report.
func ConflictError(info domain.MergeConflictInfo) ErrorPayload {
	return ErrorPayload{Conflict: &info}
}

// branchSpecific reports whether t is one of the event types the ordered
// reporter must queue until BranchesGrouped has been forwarded.
func branchSpecific(t Type) bool {
	switch t {
	case TypeBranchStatusUpdate, TypeCommitSynced, TypeCommitError, TypeCommitsBlocked, TypeRemoteStatusUpdate:
		return true
	default:
		return false
	}
}
