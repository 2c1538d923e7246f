// Package workspace manages working-copy directories for merges, supporting both
// ephemeral (disposable) and persistent (developer-owned) modes.
//
// Ephemeral mode creates a unique directory per merge attempt (e.g. wc-merge-42-20251214-122336-1234)
// that holds a sparse working copy and is removed completely after use.
//
// Persistent mode wraps a directory selected by the developer. It is never removed,
// since it holds the developer's own checkout and any merge left for manual commit.
package workspace
