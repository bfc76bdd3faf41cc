package service

import (
	"fmt"

	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

// Error kinds. Every error returned by the engine unwraps to one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation error")
)

// TaskError is a domain failure of a single operation.
type TaskError struct {
	Kind error
	Code string
	Msg  string
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *TaskError) Unwrap() error { return e.Kind }

// Is matches another TaskError by code, so errors.Is(err, ErrAlreadyClaimed)
// holds regardless of the message.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *TaskError) withMsg(format string, args ...any) error {
	return &TaskError{Kind: e.Kind, Code: e.Code, Msg: fmt.Sprintf(format, args...)}
}

var (
	ErrAlreadyClaimed       = &TaskError{Kind: ErrInvalidState, Code: "already_claimed"}
	ErrNotClaimable         = &TaskError{Kind: ErrInvalidState, Code: "not_claimable"}
	ErrNoGroupAssignment    = &TaskError{Kind: ErrInvalidState, Code: "no_group_assignment"}
	ErrNotGroupMember       = &TaskError{Kind: ErrPermissionDenied, Code: "not_group_member"}
	ErrTargetNotInGroup     = &TaskError{Kind: ErrPermissionDenied, Code: "target_not_in_group"}
	ErrAlreadyAssigned      = &TaskError{Kind: ErrInvalidState, Code: "already_assigned"}
	ErrNotAssigned          = &TaskError{Kind: ErrInvalidState, Code: "not_assigned"}
	ErrReassignLimitReached = &TaskError{Kind: ErrInvalidState, Code: "reassign_limit_reached"}
	ErrDepartmentMismatch   = &TaskError{Kind: ErrPermissionDenied, Code: "department_mismatch"}
	ErrSelfLink             = &TaskError{Kind: ErrInvalidState, Code: "self_link"}
	ErrAlreadyHasParent     = &TaskError{Kind: ErrInvalidState, Code: "already_has_parent"}
	ErrCycle                = &TaskError{Kind: ErrInvalidState, Code: "cycle"}
	ErrNotLinked            = &TaskError{Kind: ErrInvalidState, Code: "not_linked"}
)

func notFound(what, id string) error {
	return &TaskError{Kind: ErrNotFound, Code: what + "_not_found", Msg: fmt.Sprintf("%s %s not found", what, id)}
}

func invalidf(format string, args ...any) error {
	return &TaskError{Kind: ErrValidation, Code: "invalid", Msg: fmt.Sprintf(format, args...)}
}

// lookupErr turns a storage miss into a NotFound domain error and passes
// anything else through.
func lookupErr(err error, what, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound(what, id)
	}
	return err
}
