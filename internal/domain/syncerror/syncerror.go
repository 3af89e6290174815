// Package syncerror defines the tagged error kinds the sync engine
// reports: a small discriminated sum type over fmt.Errorf-wrapped
// causes, so call sites can branch with errors.As/errors.Is instead of
// string-matching messages, and so a failure can carry a structured
// MergeConflictInfo instead of just a generic message.
package syncerror

import (
	"errors"
	"fmt"

	"github.com/branch-deck/branchdeck/internal/domain"
)

// Kind discriminates the category of failure so call sites can branch on it
// with errors.As without string-matching messages.
type Kind int

const (
	KindGitInvocation Kind = iota
	KindNotARepository
	KindParse
	KindConflict
	KindPrecondition
	KindState
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindGitInvocation:
		return "git-invocation"
	case KindNotARepository:
		return "not-a-repository"
	case KindParse:
		return "parse"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	case KindState:
		return "state"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the tagged sum type returned by sync operations. Conflict holds
// the structured merge-conflict report when Kind == KindConflict; it is nil
// otherwise.
type Error struct {
	Kind     Kind
	Message  string
	Conflict *domain.MergeConflictInfo
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain, non-conflict tagged error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewConflict builds a KindConflict error carrying the structured conflict
// report used to build a CommitError event's MergeConflictInfo payload.
func NewConflict(message string, conflict *domain.MergeConflictInfo) *Error {
	return &Error{Kind: KindConflict, Message: message, Conflict: conflict}
}

// Is allows errors.Is(err, syncerror.KindConflict) style checks via a
// sentinel comparison helper.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
