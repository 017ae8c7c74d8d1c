package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCondStack(t *testing.T) {
	calls := 0
	value := func(v bool) func() bool {
		return func() bool {
			calls++
			return v
		}
	}

	t.Run("first true branch wins", func(t *testing.T) {
		c, calls0 := newCondStack(), calls
		c.Push(frameIf, 1, value(false))
		require.False(t, c.Active())
		require.NoError(t, c.Elif(value(true)))
		require.True(t, c.Active())
		require.NoError(t, c.Elif(value(true)))
		require.False(t, c.Active())
		require.NoError(t, c.Else())
		require.False(t, c.Active())
		require.NoError(t, c.Pop())
		require.True(t, c.Active())
		require.Equal(t, 2, calls-calls0, "conditions after the taken branch must not be evaluated")
	})

	t.Run("dead parent is never evaluated", func(t *testing.T) {
		c, calls0 := newCondStack(), calls
		c.Push(frameIfdef, 1, value(false))
		c.Push(frameIf, 2, value(true))
		require.NoError(t, c.Elif(value(true)))
		require.NoError(t, c.Else())
		require.False(t, c.Active())
		require.Equal(t, 1, calls-calls0)
		require.Equal(t, 2, c.Depth())
	})

	t.Run("else selects when nothing was taken", func(t *testing.T) {
		c := newCondStack()
		c.Push(frameIfndef, 1, value(false))
		require.NoError(t, c.Else())
		require.True(t, c.Active())
	})

	t.Run("elif after else", func(t *testing.T) {
		c := newCondStack()
		c.Push(frameIf, 1, value(false))
		require.NoError(t, c.Else())
		require.True(t, c.Active())
		require.ErrorIs(t, c.Elif(value(true)), errElifAfterElse)
		require.False(t, c.Active())
		require.ErrorIs(t, c.Else(), errElseAfterElse)
	})

	t.Run("unmatched", func(t *testing.T) {
		c := newCondStack()
		require.ErrorIs(t, c.Pop(), errEndifWithoutIf)
		require.ErrorIs(t, c.Else(), errElseWithoutIf)
		require.ErrorIs(t, c.Elif(value(true)), errElifWithoutIf)
		require.True(t, c.Active())
	})

	t.Run("truncate reports innermost first", func(t *testing.T) {
		c := newCondStack()
		c.Push(frameIf, 1, value(true))
		c.Push(frameIfdef, 2, value(true))
		c.Push(frameIfndef, 3, value(true))
		open := c.Truncate(1)
		require.Len(t, open, 2)
		require.Equal(t, 3, open[0].line)
		require.Equal(t, frameIfndef, open[0].kind)
		require.Equal(t, 2, open[1].line)
		require.Equal(t, 1, c.Depth())
		require.Nil(t, c.Truncate(1))
	})
}
