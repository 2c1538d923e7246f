package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/config"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu       sync.Mutex
	messages []published
	fail     error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.messages = append(c.messages, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error { return nil }

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisherSubjects(t *testing.T) {
	c := &fakeConn{}
	p := newNATSPublisher(c, "merges")

	require.NoError(t, p.PublishNew(t.Context(), NewUnit{Unit: "a.merge", Host: "svn.example.org"}))
	require.NoError(t, p.PublishMoved(t.Context(), Moved{Unit: "a.merge", From: "TODO", To: "DONE"}))
	require.NoError(t, p.Close())

	require.Len(t, c.messages, 2)
	assert.Equal(t, "merges.new", c.messages[0].subject)
	assert.Equal(t, "merges.moved", c.messages[1].subject)
	assert.True(t, c.drained)

	var moved Moved
	require.NoError(t, json.Unmarshal(c.messages[1].data, &moved))
	assert.Equal(t, "DONE", moved.To)
	assert.False(t, moved.Timestamp.IsZero())
}

func TestNATSPublisherDefaultSubject(t *testing.T) {
	c := &fakeConn{}
	require.NoError(t, newNATSPublisher(c, "").PublishNew(t.Context(), NewUnit{Unit: "a.merge"}))
	assert.Equal(t, "mergekeeper.units.new", c.messages[0].subject)
}

func TestNATSPublisherFailureIsRetryable(t *testing.T) {
	c := &fakeConn{fail: fmt.Errorf("nats: connection closed")}
	err := newNATSPublisher(c, "merges").PublishMoved(t.Context(), Moved{Unit: "a.merge"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestNewNATSPublisherRequiresURL(t *testing.T) {
	_, err := NewNATSPublisher(config.NotifyConfig{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestMemoryAndNoopPublishers(t *testing.T) {
	m := &MemoryPublisher{}
	require.NoError(t, m.PublishNew(t.Context(), NewUnit{Unit: "a"}))
	require.NoError(t, m.PublishMoved(t.Context(), Moved{Unit: "a", To: "DONE"}))
	assert.Len(t, m.News(), 1)
	assert.Equal(t, "DONE", m.Moves()[0].To)

	assert.IsType(t, NoopPublisher{}, OrNoop(nil))
	assert.Same(t, m, OrNoop(m))
}
