package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBinding_TransitionsBeginAndReleaseOnce(t *testing.T) {
	c := NewCoordinator()
	var got []int
	c.Subscribe(func(n int) { got = append(got, n) })

	b := c.Bind()
	b.Set(true)
	b.Set(true)
	assert.True(t, b.Pending())
	assert.Equal(t, 1, c.Snapshot())

	b.Set(false)
	b.Set(false)
	assert.False(t, b.Pending())
	assert.Equal(t, 0, c.Snapshot())

	assert.Equal(t, []int{1, 0}, got)
}

func TestBinding_CloseWhilePending_Releases(t *testing.T) {
	c := NewCoordinator()
	b := c.Bind()
	b.Set(true)

	b.Close()
	b.Close()
	assert.Equal(t, 0, c.Snapshot())
}

func TestBinding_SetAfterClose_IsIgnored(t *testing.T) {
	c := NewCoordinator()
	b := c.Bind()
	b.Set(true)
	b.Close()

	b.Set(true)
	assert.False(t, b.Pending())
	assert.Equal(t, 0, c.Snapshot())
}

func TestBinding_Remount_DoesNotLeak(t *testing.T) {
	c := NewCoordinator()
	for i := 0; i < 10; i++ {
		b := c.Bind()
		b.Set(true)
		b.Close()
	}
	assert.Equal(t, 0, c.Snapshot())
}

// 任意の遷移列の後にCloseすれば、カウンタは元に戻る
func TestBinding_AnySequence_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := NewCoordinator()
		other := c.Begin()

		bindings := make([]*Binding, rapid.IntRange(1, 5).Draw(rt, "bindings"))
		for i := range bindings {
			bindings[i] = c.Bind()
		}

		steps := rapid.IntRange(0, 60).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			i := rapid.IntRange(0, len(bindings)-1).Draw(rt, "binding")
			bindings[i].Set(rapid.Bool().Draw(rt, "pending"))

			want := 1
			for _, b := range bindings {
				if b.Pending() {
					want++
				}
			}
			assert.Equal(rt, want, c.Snapshot())
		}

		for _, b := range bindings {
			b.Close()
		}
		assert.Equal(rt, 1, c.Snapshot())
		other()
		assert.Equal(rt, 0, c.Snapshot())
	})
}
