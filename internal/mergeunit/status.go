package mergeunit

import (
	"fmt"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/normalization"
)

// Status is the lifecycle state of a merge unit.
type Status string

const (
	StatusTodo      Status = "TODO"
	StatusDone      Status = "DONE"
	StatusIgnored   Status = "IGNORED"
	StatusCancelled Status = "CANCELLED"
	StatusManual    Status = "MANUAL"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusDone, StatusIgnored, StatusCancelled, StatusManual}
}

var statusNames = normalization.NewEnum("status", map[string]Status{
	string(StatusTodo):      StatusTodo,
	string(StatusDone):      StatusDone,
	string(StatusIgnored):   StatusIgnored,
	string(StatusCancelled): StatusCancelled,
	"canceled":              StatusCancelled,
	string(StatusManual):    StatusManual,
}, "")

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	return statusNames.Parse(s)
}

// Settled reports whether s is one of the states re-queuing revisits.
func (s Status) Settled() bool {
	return s == StatusDone || s == StatusIgnored || s == StatusManual || s == StatusCancelled
}

// Folder is a well-known store folder.
type Folder string

const (
	FolderTodo     Folder = "todo"
	FolderDone     Folder = "done"
	FolderIgnored  Folder = "ignored"
	FolderCanceled Folder = "canceled"
	FolderManual   Folder = "manual"
)

// Folders lists the five store folders. FolderIgnored only holds legacy descriptors;
// new IGNORED units are written to FolderDone.
func Folders() []Folder {
	return []Folder{FolderTodo, FolderDone, FolderIgnored, FolderCanceled, FolderManual}
}

// Folder returns the folder a unit with status s resides in.
// DONE and IGNORED share the done folder.
func (s Status) Folder() Folder {
	switch s {
	case StatusTodo:
		return FolderTodo
	case StatusDone, StatusIgnored:
		return FolderDone
	case StatusCancelled:
		return FolderCanceled
	case StatusManual:
		return FolderManual
	}
	return ""
}

// StatusFor derives the status from a folder and the descriptor's ignored flag.
func StatusFor(folder Folder, ignored bool) (Status, error) {
	switch folder {
	case FolderTodo:
		return StatusTodo, nil
	case FolderDone:
		if ignored {
			return StatusIgnored, nil
		}
		return StatusDone, nil
	case FolderIgnored:
		return StatusIgnored, nil
	case FolderCanceled:
		return StatusCancelled, nil
	case FolderManual:
		return StatusManual, nil
	}
	return "", fmt.Errorf("unknown folder %q", folder)
}

type transition struct{ from, to Status }

// transitions is the closed table of permitted moves; the value tells whether
// the move needs explicit user confirmation.
var transitions = map[transition]bool{
	{StatusTodo, StatusDone}:      false,
	{StatusTodo, StatusCancelled}: false,
	{StatusTodo, StatusManual}:    false,
	{StatusTodo, StatusIgnored}:   false,

	{StatusDone, StatusTodo}:      true,
	{StatusIgnored, StatusTodo}:   true,
	{StatusManual, StatusTodo}:    true,
	{StatusCancelled, StatusTodo}: true,

	{StatusDone, StatusIgnored}: true,
}

// CanTransition reports whether a unit may move from one status to another.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// RequiresConfirmation reports whether the move needs explicit user consent.
// It is false for moves that are not permitted at all.
func RequiresConfirmation(from, to Status) bool {
	return transitions[transition{from, to}]
}

// IsAutomatic reports whether the system may perform the move without a user action.
func IsAutomatic(from, to Status) bool {
	return from == StatusTodo && (to == StatusDone || to == StatusCancelled)
}
