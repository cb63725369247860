package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/cclens/internal/activity"
)

func numbered(i int) activity.Event {
	return activity.NewEvent(activity.KindOther, time.Unix(int64(i), 0), fmt.Sprintf("event %d", i), nil)
}

func TestAppend_TrimsToRetainOnOverflow(t *testing.T) {
	h := New(1000, 500)

	for i := range 1000 {
		assert.Zero(t, h.Append(numbered(i)))
	}
	assert.Equal(t, 1000, h.Len(), "reaching capacity does not trim")

	dropped := h.Append(numbered(1000))
	assert.Equal(t, 501, dropped)

	all := h.All()
	require.Len(t, all, 500)
	assert.Equal(t, "event 501", all[0].Content)
	assert.Equal(t, "event 1000", all[499].Content)
}

func TestAppend_BatchOverflow(t *testing.T) {
	h := New(5, 2)
	h.Append(numbered(0), numbered(1), numbered(2))
	dropped := h.Append(numbered(3), numbered(4), numbered(5), numbered(6))

	assert.Equal(t, 5, dropped)
	all := h.All()
	require.Len(t, all, 2)
	assert.Equal(t, "event 5", all[0].Content)
	assert.Equal(t, "event 6", all[1].Content)
}

func TestAll_ReturnsCopy(t *testing.T) {
	h := New(10, 5)
	h.Append(numbered(1))

	snap := h.All()
	snap[0].Content = "mutated"
	assert.Equal(t, "event 1", h.All()[0].Content)

	h.Append(numbered(2))
	assert.Len(t, snap, 1, "earlier snapshot is unaffected by later appends")
}

func TestClear(t *testing.T) {
	h := New(10, 5)
	h.Append(numbered(1), numbered(2))
	h.Clear()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.All())

	h.Append(numbered(3))
	assert.Equal(t, 1, h.Len())
}

func TestNew_Bounds(t *testing.T) {
	tests := []struct {
		name                   string
		capacity, retain       int
		wantCapacity, wantKeep int
	}{
		{"defaults", 0, 0, DefaultCapacity, DefaultRetain},
		{"retain too large", 10, 10, 10, 5},
		{"negative retain", 10, -1, 10, 5},
		{"tiny", 1, 0, 1, 1},
		{"explicit", 100, 30, 100, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.capacity, tt.retain)
			assert.Equal(t, tt.wantCapacity, h.Capacity())
			assert.Equal(t, tt.wantKeep, h.Retain())
		})
	}
}

func TestConcurrentAppend(t *testing.T) {
	h := New(100, 50)
	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 250 {
				h.Append(numbered(g*1000 + i))
				_ = h.All()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, h.Len(), 100)
	assert.Greater(t, h.Len(), 0)
}
