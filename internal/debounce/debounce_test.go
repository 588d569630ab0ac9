package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestDebouncer_BurstDeliversLastValueOnce(t *testing.T) {
	var r recorder
	d := New(500*time.Millisecond, r.record)
	defer d.Cancel()

	d.Push("a")
	time.Sleep(30 * time.Millisecond)
	d.Push("ab")
	time.Sleep(30 * time.Millisecond)
	d.Push("abc")

	require.Eventually(t, func() bool { return len(r.values()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, r.values())
}

func TestDebouncer_NoLeadingEdge(t *testing.T) {
	var r recorder
	d := New(100*time.Millisecond, r.record)
	defer d.Cancel()

	d.Push("x")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, r.values())
}

func TestDebouncer_SeparateBurstsDeliverEach(t *testing.T) {
	var r recorder
	d := New(40*time.Millisecond, r.record)
	defer d.Cancel()

	d.Push("first")
	require.Eventually(t, func() bool { return len(r.values()) == 1 }, time.Second, 5*time.Millisecond)
	d.Push("second")
	require.Eventually(t, func() bool { return len(r.values()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, r.values())
}

func TestDebouncer_CancelDropsPending(t *testing.T) {
	var r recorder
	d := New(50*time.Millisecond, r.record)

	d.Push("late")
	d.Cancel()
	d.Cancel()
	time.Sleep(150 * time.Millisecond)
	d.Push("after")
	time.Sleep(150 * time.Millisecond)

	assert.Empty(t, r.values())
}
