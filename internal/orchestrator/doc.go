// Package orchestrator executes merge units end to end and leaves each one in
// a consistent status.
//
// Two strategies exist. Units that carry renames (SVN only) are merged into a
// developer-selected working copy and handed off; everything else is merged in
// a throwaway sparse working copy and committed automatically. All status
// changes go through store.UnitRepository; the orchestrator never touches the
// refresh loop's in-memory unit set.
//
// Presentation stays outside this package: confirmations, selections and error
// display go through Prompter, progress reporting through Progress, and
// cancellation through the context.
package orchestrator
