package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyUnit       = "unit"
	KeyFolder     = "folder"
	KeyStatus     = "status"
	KeyFrom       = "from"
	KeyTo         = "to"
	KeyStrategy   = "strategy"
	KeyOutcome    = "outcome"
	KeyAttemptID  = "attempt_id"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyRevision   = "revision"
	KeyUser       = "user"
	KeyVCS        = "vcs"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Unit(name string) slog.Attr        { return slog.String(KeyUnit, name) }
func Folder(f string) slog.Attr         { return slog.String(KeyFolder, f) }
func Status(s string) slog.Attr         { return slog.String(KeyStatus, s) }
func From(s string) slog.Attr           { return slog.String(KeyFrom, s) }
func To(s string) slog.Attr             { return slog.String(KeyTo, s) }
func Strategy(s string) slog.Attr       { return slog.String(KeyStrategy, s) }
func Outcome(o string) slog.Attr        { return slog.String(KeyOutcome, o) }
func AttemptID(id string) slog.Attr     { return slog.String(KeyAttemptID, id) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Revision(r int64) slog.Attr        { return slog.Int64(KeyRevision, r) }
func User(u string) slog.Attr           { return slog.String(KeyUser, u) }
func VCS(kind string) slog.Attr         { return slog.String(KeyVCS, kind) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func JobID(id string) slog.Attr         { return slog.String(KeyJobID, id) }
func Duration(d time.Duration) slog.Attr { return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
