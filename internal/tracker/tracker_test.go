package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_UnknownPathIsChange(t *testing.T) {
	tr := New()
	assert.True(t, tr.IsChange("/a", "X"))
	assert.True(t, tr.IsChange("/a", ""))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_RepeatAfterRecordIsNotChange(t *testing.T) {
	tr := New()

	assert.True(t, tr.IsChange("/a", "X"))
	tr.RecordSeen("/a", "X")
	assert.False(t, tr.IsChange("/a", "X"))

	last, ok := tr.Last("/a")
	assert.True(t, ok)
	assert.Equal(t, "X", last)
}

func TestTracker_IsChangeHasNoSideEffect(t *testing.T) {
	tr := New()
	assert.True(t, tr.IsChange("/a", "X"))
	assert.True(t, tr.IsChange("/a", "X"))
	_, ok := tr.Last("/a")
	assert.False(t, ok)
}

func TestTracker_ComparisonIsExact(t *testing.T) {
	tr := New()
	tr.RecordSeen("/a", "Hello")

	assert.True(t, tr.IsChange("/a", "hello"))
	assert.True(t, tr.IsChange("/a", "Hello "))
	assert.True(t, tr.IsChange("/a", "Hello\n"))
	assert.False(t, tr.IsChange("/a", "Hello"))
}

func TestTracker_PathsAreIndependent(t *testing.T) {
	tr := New()
	tr.RecordSeen("/a", "X")

	assert.True(t, tr.IsChange("/b", "X"))
	tr.RecordSeen("/b", "X")
	tr.RecordSeen("/a", "Y")

	assert.False(t, tr.IsChange("/a", "Y"))
	assert.True(t, tr.IsChange("/a", "X"))
	assert.False(t, tr.IsChange("/b", "X"))
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_ZeroValueUsable(t *testing.T) {
	var tr Tracker
	assert.True(t, tr.IsChange("/a", "X"))
	tr.RecordSeen("/a", "X")
	assert.False(t, tr.IsChange("/a", "X"))
}
