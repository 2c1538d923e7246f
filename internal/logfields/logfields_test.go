package logfields

import (
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Unit", KeyUnit, "merge-42.txt", Unit("merge-42.txt")},
		{"Folder", KeyFolder, "todo", Folder("todo")},
		{"Status", KeyStatus, "DONE", Status("DONE")},
		{"From", KeyFrom, "TODO", From("TODO")},
		{"To", KeyTo, "MANUAL", To("MANUAL")},
		{"Strategy", KeyStrategy, "workspace", Strategy("workspace")},
		{"Outcome", KeyOutcome, "done", Outcome("done")},
		{"AttemptID", KeyAttemptID, "a1", AttemptID("a1")},
		{"URL", KeyURL, "svn://host/repo", URL("svn://host/repo")},
		{"Path", KeyPath, "/tmp/wc", Path("/tmp/wc")},
		{"User", KeyUser, "testuser", User("testuser")},
		{"VCS", KeyVCS, "svn", VCS("svn")},
		{"JobID", KeyJobID, "refresh", JobID("refresh")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Revision(12); v.Key != KeyRevision || v.Value.Int64() != 12 {
		t.Fatalf("Revision mismatch: %v", v)
	}
	if v := Count(3); v.Key != KeyCount {
		t.Fatalf("Count key mismatch: %s", v.Key)
	}
	if v := Duration(1500 * time.Microsecond); v.Key != KeyDurationMS || v.Value.Float64() != 1.5 {
		t.Fatalf("Duration mismatch: %v", v)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError || attr.Value.String() != "" {
		t.Fatalf("unexpected nil error attr: %v", attr)
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
