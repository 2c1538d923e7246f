package orchestrator

import (
	"log/slog"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// Action is the user's final decision after a workspace merge.
type Action int

const (
	// ActionCommit commits the workspace and marks the unit DONE.
	ActionCommit Action = iota
	// ActionClose leaves the workspace uncommitted and marks the unit MANUAL.
	ActionClose
)

func (a Action) String() string {
	if a == ActionCommit {
		return "commit"
	}
	return "close"
}

// Prompter asks the user for decisions. Implementations decide how.
type Prompter interface {
	// ConfirmRequeue asks whether a settled unit may go back to TODO.
	ConfirmRequeue(u *mergeunit.MergeUnit) bool
	// ConfirmIgnoreDone asks whether a DONE unit may be marked IGNORED.
	ConfirmIgnoreDone(u *mergeunit.MergeUnit) bool
	// SelectWorkspace asks for a working copy directory; ok is false when the user gives up.
	SelectWorkspace(u *mergeunit.MergeUnit) (path string, ok bool)
	// ReportInvalidWorkspace explains why a selected directory was rejected.
	ReportInvalidWorkspace(path, want, got string)
	// AskRetry reports a failed merge attempt and asks whether to try again.
	AskRetry(u *mergeunit.MergeUnit, err error) bool
	// ShowError displays a diagnostic for err.
	ShowError(u *mergeunit.MergeUnit, err error)
	// ConfirmCommit guards a commit of a working copy that had local changes before the merge.
	ConfirmCommit(u *mergeunit.MergeUnit) bool
	// FinalAction asks how to finish a workspace merge.
	FinalAction(u *mergeunit.MergeUnit, conflicts bool) Action
}

// Progress reports the steps of a running merge. Cancellation is carried by the context.
type Progress interface {
	Begin(task string, steps int)
	Step(name string)
	Done()
}

// NopProgress discards progress reports.
type NopProgress struct{}

func (NopProgress) Begin(string, int) {}
func (NopProgress) Step(string)       {}
func (NopProgress) Done()             {}

// AutomaticPrompter answers for unattended runs: it never re-queues, never
// retries and never selects a workspace. Errors are logged.
type AutomaticPrompter struct{}

var _ Prompter = AutomaticPrompter{}

func (AutomaticPrompter) ConfirmRequeue(*mergeunit.MergeUnit) bool    { return false }
func (AutomaticPrompter) ConfirmIgnoreDone(*mergeunit.MergeUnit) bool { return false }

func (AutomaticPrompter) SelectWorkspace(u *mergeunit.MergeUnit) (string, bool) {
	slog.Info("Unit needs a developer workspace, leaving it for an interactive merge", logfields.Unit(u.FileName))
	return "", false
}

func (AutomaticPrompter) ReportInvalidWorkspace(string, string, string) {}

func (AutomaticPrompter) AskRetry(u *mergeunit.MergeUnit, err error) bool {
	slog.Warn("Automatic merge attempt failed", logfields.Unit(u.FileName), logfields.Error(err))
	return false
}

func (AutomaticPrompter) ShowError(u *mergeunit.MergeUnit, err error) {
	slog.Error("Automatic merge failed", logfields.Unit(u.FileName), logfields.Error(err))
}

func (AutomaticPrompter) ConfirmCommit(*mergeunit.MergeUnit) bool { return false }

func (AutomaticPrompter) FinalAction(*mergeunit.MergeUnit, bool) Action { return ActionClose }
