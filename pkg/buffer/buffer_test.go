package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawtrack/walkstream/metric"
)

func TestRing_WriteRead(t *testing.T) {
	buf, err := NewRing[int](4)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, buf.Write(i))
	}
	assert.Equal(t, 3, buf.Size())
	assert.False(t, buf.IsFull())

	v, ok := buf.Read()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, buf.Size())
}

func TestRing_ReadEmpty(t *testing.T) {
	buf, err := NewRing[string](2)
	require.NoError(t, err)

	v, ok := buf.Read()
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.True(t, buf.IsEmpty())
}

func TestRing_DropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewRing[int](3,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, buf.Write(i))
	}

	// Oldest two evicted, FIFO order preserved
	assert.Equal(t, []int{1, 2}, dropped)
	assert.Equal(t, []int{3, 4, 5}, buf.ReadBatch(10))
	assert.Equal(t, int64(2), buf.Stats().Drops())
	assert.Equal(t, int64(2), buf.Stats().Overflows())
}

func TestRing_DropNewest(t *testing.T) {
	buf, err := NewRing[int](2, WithOverflowPolicy[int](DropNewest))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // dropped

	assert.Equal(t, []int{1, 2}, buf.ReadBatch(10))
	assert.Equal(t, int64(1), buf.Stats().Drops())
}

func TestRing_ReadBatch(t *testing.T) {
	buf, err := NewRing[int](10)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, buf.Write(i))
	}

	batch := buf.ReadBatch(5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, batch)
	assert.Equal(t, 2, buf.Size())

	assert.Nil(t, buf.ReadBatch(0))
}

func TestRing_Peek(t *testing.T) {
	buf, err := NewRing[int](4)
	require.NoError(t, err)
	require.NoError(t, buf.Write(42))

	v, ok := buf.Peek()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, buf.Size()) // not removed
}

func TestRing_Clear(t *testing.T) {
	var dropped int
	buf, err := NewRing[int](4, WithDropCallback[int](func(int) { dropped++ }))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	buf.Clear()

	assert.True(t, buf.IsEmpty())
	assert.Equal(t, 2, dropped)
}

func TestRing_WriteAfterClose(t *testing.T) {
	buf, err := NewRing[int](2)
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	assert.Error(t, buf.Write(1))
}

func TestRing_WrapAround(t *testing.T) {
	buf, err := NewRing[int](3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Write(i))
	}
	buf.ReadBatch(2)
	require.NoError(t, buf.Write(3))
	require.NoError(t, buf.Write(4))

	assert.Equal(t, []int{2, 3, 4}, buf.ReadBatch(10))
}

func TestRing_WithMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	buf, err := NewRing[int](2, WithMetrics[int](reg, "retention"))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // overflow, oldest evicted

	assert.Equal(t, int64(3), buf.Stats().Writes())
	assert.Equal(t, int64(1), buf.Stats().Drops())
}

func TestRing_CloseReleasesMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()

	// Same prefix on a shared registry collides while the first buffer lives
	buf, err := NewRing[int](2, WithMetrics[int](reg, "retention"))
	require.NoError(t, err)
	_, err = NewRing[int](2, WithMetrics[int](reg, "retention"))
	require.Error(t, err)

	// Close unregisters, so the prefix is reusable
	require.NoError(t, buf.Close())
	again, err := NewRing[int](2, WithMetrics[int](reg, "retention"))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestRing_MinimumCapacity(t *testing.T) {
	buf, err := NewRing[int](0)
	require.NoError(t, err)
	assert.Equal(t, 1, buf.Capacity())
}
