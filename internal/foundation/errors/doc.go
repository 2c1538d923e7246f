// Package errors provides the classified error primitives shared by mergekeeper.
//
// A ClassifiedError carries a category, a severity and a retry strategy so that callers
// can decide how to react without parsing messages:
//   - CategoryVCS errors come from the version-control backend and may be retried with consent
//   - CategoryStore errors come from the remote unit store and may be retried automatically
//   - CategoryContract errors are programming mistakes and are never retried
//   - CategoryCancelled marks a user-cancelled operation
//
// Example usage:
//
//	err := errors.VCSError("merge failed").
//		WithCause(cause).
//		WithContext("url", targetURL).
//		Build()
package errors
