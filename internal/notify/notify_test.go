package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []*Notification
}

func (r *recorder) publish(n *Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNotify_AutoDismiss(t *testing.T) {
	rec := &recorder{}
	n := New(20*time.Millisecond, rec.publish)
	defer n.Close()

	n.Notify(enum.NotifyError, "in use")

	cur, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, enum.NotifyError, cur.Kind)
	assert.Equal(t, "in use", cur.Message)

	assert.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, rec.events[1], "dismissal publishes nil")
}

func TestNotify_ReplacesCurrent(t *testing.T) {
	n := New(50*time.Millisecond, nil)
	defer n.Close()

	n.Notify(enum.NotifyInfo, "first")
	first, _ := n.Current()
	time.Sleep(30 * time.Millisecond)
	n.Notify(enum.NotifySuccess, "second")

	time.Sleep(30 * time.Millisecond)
	cur, ok := n.Current()
	require.True(t, ok, "the first timer must not dismiss the replacement")
	assert.Equal(t, "second", cur.Message)
	assert.NotEqual(t, first.ID, cur.ID)
}

func TestNotify_UnknownKindIsInfo(t *testing.T) {
	n := New(time.Hour, nil)
	defer n.Close()

	n.Notify("shout", "x")
	cur, _ := n.Current()
	assert.Equal(t, enum.NotifyInfo, cur.Kind)
}

func TestDismiss(t *testing.T) {
	rec := &recorder{}
	n := New(time.Hour, rec.publish)
	defer n.Close()

	n.Notify(enum.NotifySuccess, "saved")
	cur, _ := n.Current()

	assert.True(t, n.Dismiss(cur.ID))
	assert.False(t, n.Dismiss(cur.ID))
	_, ok := n.Current()
	assert.False(t, ok)
	assert.Equal(t, 2, rec.count())
}

func TestClose_DropsLaterNotifications(t *testing.T) {
	n := New(time.Hour, nil)
	n.Close()
	n.Notify(enum.NotifyInfo, "late")

	_, ok := n.Current()
	assert.False(t, ok)
}
