package versionresolver

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs/vcstest"
)

const pom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>org.example</groupId>
    <version>9.9.9</version>
  </parent>
  <artifactId>app</artifactId>
  <version>2.3.1-SNAPSHOT</version>
  <dependencies>
    <dependency><version>5.0</version></dependency>
  </dependencies>
</project>`

func TestProjectVersionReadsDepthTwoOnly(t *testing.T) {
	v, err := ProjectVersion(strings.NewReader(pom))
	require.NoError(t, err)
	assert.Equal(t, "2.3.1-SNAPSHOT", v)

	v, err = ProjectVersion(strings.NewReader(`<project><parent><version>1.0</version></parent></project>`))
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = ProjectVersion(strings.NewReader(`<project><artifactId>a</project>`))
	assert.Error(t, err)
}

func TestStripQualifier(t *testing.T) {
	tests := map[string]string{
		"2.3.1-SNAPSHOT": "2.3.1",
		"1.4-SNAPSHOT":   "1.4",
		"1.0.0":          "1.0.0",
		"1.0.0+build.7":  "1.0.0",
		"R2-final":       "R2",
		" 3.2 ":          "3.2",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripQualifier(in), in)
	}
}

func TestForURLWalksCandidates(t *testing.T) {
	fake := vcstest.New()
	fake.SetFile("svn://repo/app/trunk/pom.xml", []byte(pom))
	r := New(fake, Options{
		DescriptorName: "pom.xml",
		CandidatePaths: []string{"build.gradle", "pom.xml", "trunk/pom.xml"},
	})

	assert.Equal(t, "2.3.1", r.ForURL(t.Context(), "svn://repo/app/"))
	// build.gradle is skipped, pom.xml is not found, trunk/pom.xml resolves.
	assert.Equal(t, 2, fake.Calls("cat"))

	assert.Equal(t, "2.3.1", r.ForURL(t.Context(), "svn://repo/app/"))
	assert.Equal(t, 2, fake.Calls("cat"), "second lookup must be served from cache")
}

func TestForURLFallsBackToZeroVersion(t *testing.T) {
	fake := vcstest.New()
	r := New(fake, Options{CandidatePaths: []string{"pom.xml", "trunk/pom.xml"}})

	assert.Equal(t, ZeroVersion, r.ForURL(t.Context(), "svn://repo/none"))
	assert.True(t, r.Cached("svn://repo/none"))
	assert.Equal(t, ZeroVersion, r.ForURL(t.Context(), "svn://repo/none"))
	assert.Equal(t, 2, fake.Calls("cat"))
}

func TestForURLDoesNotCacheTransportFailures(t *testing.T) {
	fake := vcstest.New()
	fake.FailNext("cat", vcs.Wrap("cat", "svn://repo/app/pom.xml", vcs.ErrTransport, fmt.Errorf("connection reset")))
	fake.SetFile("svn://repo/app/pom.xml", []byte(pom))
	r := New(fake, Options{})

	assert.Equal(t, ZeroVersion, r.ForURL(t.Context(), "svn://repo/app"))
	assert.False(t, r.Cached("svn://repo/app"))
	assert.Equal(t, "2.3.1", r.ForURL(t.Context(), "svn://repo/app"))
}

func TestCacheEvictsInInsertionOrder(t *testing.T) {
	fake := vcstest.New()
	r := New(fake, Options{Capacity: 20})
	url := func(i int) string { return fmt.Sprintf("svn://repo/p%02d", i) }

	for i := 1; i <= 20; i++ {
		r.ForURL(t.Context(), url(i))
		// Repeated reads of the first entry do not protect it.
		r.ForURL(t.Context(), url(1))
	}
	require.Equal(t, 20, r.Len())

	r.ForURL(t.Context(), url(21))
	assert.Equal(t, 20, r.Len())
	assert.False(t, r.Cached(url(1)))
	for i := 2; i <= 21; i++ {
		assert.True(t, r.Cached(url(i)), url(i))
	}
}

func TestForURLConcurrent(t *testing.T) {
	fake := vcstest.New()
	for i := range 30 {
		fake.SetFile(fmt.Sprintf("svn://repo/p%d/pom.xml", i), []byte(pom))
	}
	r := New(fake, Options{Capacity: 10})

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.Equal(t, "2.3.1", r.ForURL(t.Context(), fmt.Sprintf("svn://repo/p%d", i%15)))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), 10)
}
