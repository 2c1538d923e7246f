// Package versionresolver maps repository URLs to released versions read from
// build descriptors (pom.xml) fetched through a vcs.Client.
package versionresolver

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	goversion "github.com/hashicorp/go-version"

	"git.home.luguber.info/inful/mergekeeper/internal/config"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// ZeroVersion is returned when no candidate descriptor yields a version.
const ZeroVersion = "0.0.0"

// DefaultCapacity is the cache size used when none is configured.
const DefaultCapacity = 20

// Options configures a Resolver.
type Options struct {
	DescriptorName string
	CandidatePaths []string
	Capacity       int
	Recorder       metrics.Recorder
	// JoinURL builds the URL of a candidate below the repository URL.
	// Defaults to a slash join.
	JoinURL func(base, rel string) string
}

// OptionsFromConfig maps the versions config section to Options.
func OptionsFromConfig(c config.VersionsConfig) Options {
	return Options{
		DescriptorName: c.DescriptorName,
		CandidatePaths: c.CandidatePaths,
		Capacity:       c.CacheSize,
	}
}

// Resolver resolves and caches versions. Safe for concurrent use.
type Resolver struct {
	client vcs.Client
	opts   Options

	mu    sync.RWMutex
	cache *ring
}

// New creates a Resolver reading descriptors with client.
func New(client vcs.Client, opts Options) *Resolver {
	if opts.DescriptorName == "" {
		opts.DescriptorName = "pom.xml"
	}
	if len(opts.CandidatePaths) == 0 {
		opts.CandidatePaths = []string{opts.DescriptorName}
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.JoinURL == nil {
		opts.JoinURL = slashJoin
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	return &Resolver{client: client, opts: opts, cache: newRing(opts.Capacity)}
}

// ForURL returns the version declared by the first matching candidate descriptor
// below url, with any pre-release qualifier removed. It never fails: when no
// candidate resolves it returns ZeroVersion.
func (r *Resolver) ForURL(ctx context.Context, url string) string {
	r.mu.RLock()
	v, ok := r.cache.get(url)
	r.mu.RUnlock()
	if ok {
		r.opts.Recorder.IncVersionCache(true)
		return v
	}
	r.opts.Recorder.IncVersionCache(false)

	v, cacheable := r.resolve(ctx, url)
	if !cacheable {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache.get(url); ok {
		return cached
	}
	r.cache.put(url, v)
	return v
}

// Len reports the number of cached URLs.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache.len()
}

// Cached reports whether url is currently cached.
func (r *Resolver) Cached(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache.get(url)
	return ok
}

// resolve walks the candidates. The second result is false when a transport
// failure prevented a definite answer; such results are not cached.
func (r *Resolver) resolve(ctx context.Context, url string) (string, bool) {
	definite := true
	for _, candidate := range r.opts.CandidatePaths {
		if path.Base(candidate) != r.opts.DescriptorName {
			continue
		}
		target := r.opts.JoinURL(url, candidate)
		data, err := r.client.Cat(ctx, target)
		if err != nil {
			if !vcs.IsNotFound(err) {
				definite = false
				slog.Warn("Version descriptor lookup failed", logfields.URL(target), logfields.Error(err))
			}
			continue
		}
		raw, err := ProjectVersion(bytes.NewReader(data))
		if err != nil {
			slog.Debug("Version descriptor unreadable", logfields.URL(target), logfields.Error(err))
			continue
		}
		if raw == "" {
			continue
		}
		return StripQualifier(raw), true
	}
	return ZeroVersion, definite
}

// ProjectVersion returns the text of the version element directly below the
// project root, ignoring versions of parents, dependencies and plugins.
func ProjectVersion(rd io.Reader) (string, error) {
	dec := xml.NewDecoder(rd)
	var stack []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 2 && stack[0] == "project" && stack[1] == "version" {
				return strings.TrimSpace(string(t)), nil
			}
		}
	}
}

// StripQualifier removes a pre-release or build qualifier ("1.4-SNAPSHOT" -> "1.4").
func StripQualifier(raw string) string {
	raw = strings.TrimSpace(raw)
	if v, err := goversion.NewVersion(raw); err == nil {
		if v.Prerelease() == "" && v.Metadata() == "" {
			return raw
		}
		if i := strings.IndexAny(raw, "-+"); i > 0 {
			return raw[:i]
		}
		return v.Core().String()
	}
	if i := strings.Index(raw, "-"); i > 0 {
		return raw[:i]
	}
	return raw
}

func slashJoin(base, rel string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rel, "/")
}
