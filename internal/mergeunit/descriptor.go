package mergeunit

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// Descriptor header keys.
const (
	keyVCS          = "vcs"
	keyHost         = "host"
	keyRepository   = "repository"
	keyDate         = "date"
	keyBranchSource = "branch_source"
	keyBranchTarget = "branch_target"
	keyRevisionInfo = "revision_info"
	keySourceURL    = "source_url"
	keyTargetURL    = "target_url"
	keyRevisions    = "revisions"
	keyMessage      = "message"
	keyCommitID     = "commit_id"
	keyCapabilities = "capabilities"
	keyIgnored      = "ignored"
	keyFile         = "file"
)

const renameArrow = "=>"

// Parse decodes a descriptor read from folder. Descriptors that are not valid
// UTF-8 are decoded as ISO-8859-1.
func Parse(fileName, remotePath string, folder Folder, data []byte) (*MergeUnit, error) {
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, parseError(fileName, 0, "undecodable content")
		}
		data = decoded
	}

	u := &MergeUnit{FileName: fileName, RemotePath: remotePath, Kind: vcs.KindSVN}
	var (
		ignored      bool
		capsExplicit bool
		svn          SVNInfo
		git          GitInfo
		haveDate     bool
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if kind, text, ok := scriptLine(line); ok {
			u.Script = append(u.Script, ScriptLine{Kind: kind, Text: text})
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, parseError(fileName, lineNo, "expected key=value or script line")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case keyVCS:
			u.Kind = vcs.Kind(strings.ToLower(value))
			if !u.Kind.Valid() {
				return nil, parseError(fileName, lineNo, fmt.Sprintf("unknown vcs %q", value))
			}
		case keyHost:
			u.Host = value
		case keyRepository:
			u.Repository = value
		case keyDate:
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, parseError(fileName, lineNo, "date must be RFC 3339")
			}
			u.Date = ts
			haveDate = true
		case keyBranchSource:
			u.BranchSource = value
		case keyBranchTarget:
			u.BranchTarget = value
		case keyRevisionInfo:
			u.RevisionInfo = value
		case keySourceURL:
			svn.SourceURL, git.SourceURL = value, value
		case keyTargetURL:
			svn.TargetURL, git.TargetURL = value, value
		case keyRevisions:
			revs, err := parseRevisions(value)
			if err != nil {
				return nil, parseError(fileName, lineNo, err.Error())
			}
			svn.Revisions = revs
		case keyMessage:
			svn.Message = unescape(value)
		case keyCommitID:
			git.CommitID = value
		case keyCapabilities:
			capsExplicit = true
			for _, c := range strings.Split(value, ",") {
				if strings.TrimSpace(c) == CapRenameMapping.String() {
					u.Capabilities |= CapRenameMapping
				}
			}
		case keyIgnored:
			ignored, _ = strconv.ParseBool(value)
		case keyFile:
			src, dst, renamed := strings.Cut(value, renameArrow)
			src = strings.TrimSpace(src)
			dst = strings.TrimSpace(dst)
			if src == "" {
				return nil, parseError(fileName, lineNo, "empty file entry")
			}
			if !renamed || dst == "" {
				dst = src
			}
			u.SourceFiles = append(u.SourceFiles, src)
			u.TargetFiles = append(u.TargetFiles, dst)
		default:
			u.Extra = append(u.Extra, Header{Key: key, Value: value})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, parseError(fileName, lineNo, err.Error())
	}

	status, err := StatusFor(folder, ignored)
	if err != nil {
		return nil, parseError(fileName, 0, err.Error())
	}
	u.Status = status

	switch u.Kind {
	case vcs.KindSVN:
		u.SVN = &svn
		if !capsExplicit {
			u.Capabilities |= CapRenameMapping
		}
		if u.RevisionInfo == "" && len(svn.Revisions) > 0 {
			u.RevisionInfo = revisionRange(svn.Revisions)
		}
	case vcs.KindGit:
		u.Git = &git
		if u.RevisionInfo == "" {
			u.RevisionInfo = shortID(git.CommitID)
		}
	}

	if err := validate(u, haveDate); err != nil {
		return nil, err
	}
	return u, nil
}

func validate(u *MergeUnit, haveDate bool) error {
	var missing []string
	need := func(key, value string) {
		if value == "" {
			missing = append(missing, key)
		}
	}
	need(keyHost, u.Host)
	need(keyRepository, u.Repository)
	need(keyBranchSource, u.BranchSource)
	need(keyBranchTarget, u.BranchTarget)
	if !haveDate {
		missing = append(missing, keyDate)
	}
	if len(u.SourceFiles) == 0 {
		missing = append(missing, keyFile)
	}
	switch u.Kind {
	case vcs.KindSVN:
		need(keySourceURL, u.SVN.SourceURL)
		need(keyTargetURL, u.SVN.TargetURL)
		if len(u.SVN.Revisions) == 0 {
			missing = append(missing, keyRevisions)
		}
	case vcs.KindGit:
		need(keyCommitID, u.Git.CommitID)
		need(keySourceURL, u.Git.SourceURL)
		need(keyTargetURL, u.Git.TargetURL)
	}
	if len(missing) > 0 {
		return errors.ValidationError("descriptor is incomplete").
			WithContext("file", u.FileName).
			WithContext("missing", strings.Join(missing, ",")).
			Build()
	}
	return nil
}

func scriptLine(line string) (ScriptKind, string, bool) {
	// "##" must be checked before "#"
	for _, kind := range []ScriptKind{ScriptCommentComplete, ScriptComment, ScriptWarning, ScriptInfo} {
		prefix := scriptPrefixes[kind]
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return kind, strings.TrimSpace(rest), true
		}
	}
	return 0, "", false
}

func parseRevisions(value string) ([]int64, error) {
	var revs []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "r")
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid revision %q", part)
		}
		revs = append(revs, n)
	}
	return revs, nil
}

func revisionRange(revs []int64) string {
	if len(revs) == 1 {
		return fmt.Sprintf("r%d", revs[0])
	}
	return fmt.Sprintf("r%d-r%d", revs[0], revs[len(revs)-1])
}

func parseError(fileName string, line int, msg string) error {
	b := errors.ValidationError("invalid descriptor: "+msg).WithContext("file", fileName)
	if line > 0 {
		b.WithContext("line", line)
	}
	return b.Build()
}

func escape(s string) string   { return strings.ReplaceAll(s, "\n", `\n`) }
func unescape(s string) string { return strings.ReplaceAll(s, `\n`, "\n") }

// Format encodes u as a descriptor. The ignored flag is written for IGNORED units
// so they stay distinguishable from DONE units in the shared done folder.
func Format(u *MergeUnit) []byte {
	var b bytes.Buffer
	put := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s=%s\n", key, value)
		}
	}
	put(keyVCS, string(u.Kind))
	put(keyHost, u.Host)
	put(keyRepository, u.Repository)
	if !u.Date.IsZero() {
		put(keyDate, u.Date.UTC().Format(time.RFC3339))
	}
	put(keyBranchSource, u.BranchSource)
	put(keyBranchTarget, u.BranchTarget)
	put(keyRevisionInfo, u.RevisionInfo)
	put(keySourceURL, u.SourceURL())
	put(keyTargetURL, u.TargetURL())
	if u.SVN != nil {
		revs := make([]string, len(u.SVN.Revisions))
		for i, r := range u.SVN.Revisions {
			revs[i] = strconv.FormatInt(r, 10)
		}
		put(keyRevisions, strings.Join(revs, ","))
		put(keyMessage, escape(u.SVN.Message))
	}
	if u.Git != nil {
		put(keyCommitID, u.Git.CommitID)
	}
	put(keyCapabilities, u.Capabilities.String())
	if u.Status == StatusIgnored {
		put(keyIgnored, "true")
	}
	for i, src := range u.SourceFiles {
		dst := src
		if i < len(u.TargetFiles) {
			dst = u.TargetFiles[i]
		}
		if dst == src {
			put(keyFile, src)
		} else {
			put(keyFile, src+renameArrow+dst)
		}
	}
	for _, h := range u.Extra {
		put(h.Key, h.Value)
	}
	for _, line := range u.Script {
		fmt.Fprintf(&b, "%s %s\n", scriptPrefixes[line.Kind], line.Text)
	}
	return b.Bytes()
}

// SetIgnoredFlag rewrites the ignored header of raw descriptor content,
// leaving every other line untouched.
func SetIgnoredFlag(data []byte, ignored bool) []byte {
	var b bytes.Buffer
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line == "" {
			continue
		}
		key, _, ok := strings.Cut(line, "=")
		if ok && strings.ToLower(strings.TrimSpace(key)) == keyIgnored {
			continue
		}
		b.WriteString(line)
	}
	if ignored {
		if b.Len() > 0 && !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
			b.WriteByte('\n')
		}
		b.WriteString(keyIgnored + "=true\n")
	}
	return b.Bytes()
}
