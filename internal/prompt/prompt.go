// Package prompt implements the interactive side of a merge on a terminal:
// a huh-based orchestrator.Prompter and a Progress that logs steps.
package prompt

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/orchestrator"
)

// asker is the question primitive behind Terminal.
type asker interface {
	Confirm(title, description string) (bool, error)
	Input(title, placeholder string, validate func(string) error) (string, error)
	Choose(title string, options []string) (string, error)
}

// huhAsker renders questions as huh forms.
type huhAsker struct{}

func (huhAsker) Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes.").
		Negative("No.").
		Value(&ok))).Run()
	return ok, err
}

func (huhAsker) Input(title, placeholder string, validate func(string) error) (string, error) {
	var value string
	input := huh.NewInput().Title(title).Placeholder(placeholder).Value(&value)
	if validate != nil {
		input = input.Validate(validate)
	}
	err := huh.NewForm(huh.NewGroup(input)).Run()
	return strings.TrimSpace(value), err
}

func (huhAsker) Choose(title string, options []string) (string, error) {
	var value string
	err := huh.NewForm(huh.NewGroup(huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&value))).Run()
	return value, err
}

// Terminal asks questions on the terminal. An aborted form counts as "no".
type Terminal struct {
	ask     asker
	out     io.Writer
	verbose bool
}

var _ orchestrator.Prompter = (*Terminal)(nil)

// NewTerminal creates a terminal prompter writing diagnostics to stderr.
func NewTerminal(verbose bool) *Terminal {
	return &Terminal{ask: huhAsker{}, out: os.Stderr, verbose: verbose}
}

func (t *Terminal) confirm(title, description string) bool {
	ok, err := t.ask.Confirm(title, description)
	if err != nil {
		if !stderrors.Is(err, huh.ErrUserAborted) {
			slog.Warn("Prompt failed", logfields.Error(err))
		}
		return false
	}
	return ok
}

func (t *Terminal) ConfirmRequeue(u *mergeunit.MergeUnit) bool {
	return t.confirm(
		fmt.Sprintf("Re-queue %s?", u.FileName),
		fmt.Sprintf("The unit is %s. Re-queuing moves it back to TODO.", u.Status))
}

func (t *Terminal) ConfirmIgnoreDone(u *mergeunit.MergeUnit) bool {
	return t.confirm(
		fmt.Sprintf("Ignore %s?", u.FileName),
		"The unit was already merged. Mark it as ignored anyway?")
}

func (t *Terminal) SelectWorkspace(u *mergeunit.MergeUnit) (string, bool) {
	path, err := t.ask.Input(
		fmt.Sprintf("Working copy of %s for %s", u.BranchTarget, u.FileName),
		"/path/to/working/copy",
		validateDirectory)
	if err != nil || path == "" {
		return "", false
	}
	return path, true
}

func validateDirectory(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("cannot use %s: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p)
	}
	return nil
}

func (t *Terminal) ReportInvalidWorkspace(path, want, got string) {
	if got == "" {
		_, _ = fmt.Fprintf(t.out, "%s is not a working copy (expected %s)\n", path, want)
		return
	}
	_, _ = fmt.Fprintf(t.out, "%s is a working copy of %s, expected %s\n", path, got, want)
}

func (t *Terminal) AskRetry(u *mergeunit.MergeUnit, err error) bool {
	t.ShowError(u, err)
	return t.confirm("Retry the merge?", "Choosing no leaves the unit in TODO.")
}

// ShowError prints the error with its classification and cause chain.
func (t *Terminal) ShowError(u *mergeunit.MergeUnit, err error) {
	_, _ = fmt.Fprint(t.out, Diagnostic(u, err, t.verbose))
}

func (t *Terminal) ConfirmCommit(u *mergeunit.MergeUnit) bool {
	return t.confirm(
		fmt.Sprintf("Commit %s?", u.FileName),
		"The working copy had local modifications before the merge; they will be committed too.")
}

func (t *Terminal) FinalAction(u *mergeunit.MergeUnit, conflicts bool) orchestrator.Action {
	title := fmt.Sprintf("Finish %s", u.FileName)
	if conflicts {
		title += " (conflicts remain, commit is refused until they are resolved)"
	}
	commit := "Commit and mark DONE"
	choice, err := t.ask.Choose(title, []string{commit, "Close without commit and mark MANUAL"})
	if err != nil || choice != commit {
		return orchestrator.ActionClose
	}
	return orchestrator.ActionCommit
}

// Diagnostic renders err for display. In verbose mode every wrapped cause is
// listed together with the classified context.
func Diagnostic(u *mergeunit.MergeUnit, err error, verbose bool) string {
	var b strings.Builder
	if u != nil {
		fmt.Fprintf(&b, "%s: ", u.FileName)
	}
	if ce, ok := errors.AsClassified(err); ok {
		fmt.Fprintf(&b, "[%s] %s\n", ce.Category(), ce.Message())
		if verbose {
			ctx := ce.Context()
			for _, k := range slices.Sorted(maps.Keys(ctx)) {
				fmt.Fprintf(&b, "  %s: %v\n", k, ctx[k])
			}
		}
	} else {
		fmt.Fprintf(&b, "%v\n", err)
	}
	if verbose {
		for cause := stderrors.Unwrap(err); cause != nil; cause = stderrors.Unwrap(cause) {
			fmt.Fprintf(&b, "  caused by: %v\n", cause)
		}
	}
	return b.String()
}
