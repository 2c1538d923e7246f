// Package mergeunit models merge units: descriptors of pending cross-branch
// merges whose status is carried by the store folder they reside in.
//
// A unit's status can only change through the closed transition table in
// CanTransition. Ordering (Compare) looks at host, repository and date only,
// so processing order is chronological and independent of file name or status.
package mergeunit
