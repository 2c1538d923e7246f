package orchestrator

import (
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// Strategy names how a unit is merged.
type Strategy string

const (
	// StrategyWorkspace merges into a developer working copy; the commit is left to the user.
	StrategyWorkspace Strategy = "workspace"
	// StrategyEphemeral merges in a throwaway sparse working copy and commits automatically.
	StrategyEphemeral Strategy = "ephemeral"
)

// SelectStrategy picks the strategy from unit properties alone.
func SelectStrategy(u *mergeunit.MergeUnit, hasRenaming bool) Strategy {
	if u.Kind == vcs.KindSVN && hasRenaming {
		return StrategyWorkspace
	}
	return StrategyEphemeral
}

// Outcome is how a merge request ended.
type Outcome string

const (
	// OutcomeDone: committed, unit moved to DONE.
	OutcomeDone Outcome = "done"
	// OutcomeCancelled: the user cancelled an ephemeral merge, unit moved to CANCELLED.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeManual: workspace closed without commit, unit moved to MANUAL.
	OutcomeManual Outcome = "manual"
	// OutcomeAbandoned: the user gave up on a workspace merge, unit stays TODO.
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeFailed: the merge or commit failed, unit stays TODO.
	OutcomeFailed Outcome = "failed"
	// OutcomeRefused: the user declined to re-queue a settled unit; nothing changed.
	OutcomeRefused Outcome = "refused"
)

// Progressed reports whether the unit left TODO.
func (o Outcome) Progressed() bool {
	switch o {
	case OutcomeDone, OutcomeCancelled, OutcomeManual:
		return true
	}
	return false
}
