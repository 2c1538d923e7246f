// Package vcs defines the contract the merge orchestration requires from a
// version-control backend, independent of whether the backend is Subversion or Git.
//
// Backends live in sub-packages:
//   - svn: drives the svn command-line client
//   - gitvcs: go-git for repository reads, the git binary for sparse checkouts and merges
//   - vcstest: an in-memory fake for tests
//
// All operations fail with a *Error (wrapped in a ClassifiedError of category vcs or
// not_found) on transport or repository failure. CheckoutEmpty and UpdateEmpty reject
// empty paths or URLs with a contract error.
package vcs
