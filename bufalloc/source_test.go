package bufalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	r := Range{Start: 10, End: 20}
	assert.Equal(t, 10, r.Len())
	assert.True(t, r.Contains(10))
	assert.False(t, r.Contains(20))
	assert.True(t, r.Overlaps(Range{Start: 19, End: 30}))
	assert.False(t, r.Overlaps(Range{Start: 20, End: 30}))
	assert.False(t, r.Overlaps(Range{Start: 0, End: 10}))
	assert.Equal(t, "10..20", r.String())
}

func testBufferSource(t *testing.T, src BufferSource, size int) {
	assert.Equal(t, size, src.Size())

	all := src.SubSlice(Range{Start: 0, End: size})
	assert.Equal(t, repeat(0, size), all, "not zero-filled")

	lo, hi := size/4, size/2
	b := src.SubSlice(Range{Start: lo, End: hi})
	assert.Len(t, b, hi-lo)
	fill(b, 0x42)
	assert.Equal(t, byte(0x42), all[lo])
	assert.Equal(t, byte(0x42), all[hi-1])
	assert.Equal(t, byte(0), all[hi])
	assert.Equal(t, hi-lo, cap(b))

	assert.NotPanics(t, func() { src.SubSlice(Range{Start: size - 1, End: size}) })
	assert.Panics(t, func() { src.SubSlice(Range{Start: size, End: size}) })
	assert.Panics(t, func() { src.SubSlice(Range{Start: 0, End: size + 1}) })
	assert.Panics(t, func() { src.SubSlice(Range{Start: 20, End: 10}) })
	assert.Panics(t, func() { src.SubSlice(Range{Start: -1, End: 10}) })

	if c, ok := src.(Committer); ok {
		assert.NoError(t, c.CommitRange(Range{Start: lo, End: min(lo+5000, size)}))
		assert.Equal(t, byte(0x42), all[lo], "commit must not touch contents")
	}

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
}

func TestHeapBufferSource(t *testing.T) {
	testBufferSource(t, NewHeapBufferSource(64*1024), 64*1024)
	testBufferSource(t, NewHeapBufferSource(123), 123)
	testBufferSource(t, NewHeapBufferSource(4), 4)

	// recycled memory comes back zeroed
	src := NewHeapBufferSource(8192)
	fill(src.SubSlice(Range{Start: 0, End: 8192}), 0xff)
	require.NoError(t, src.Close())
	src = NewHeapBufferSource(8192)
	assert.Equal(t, repeat(0, 8192), src.SubSlice(Range{Start: 0, End: 8192}))
	require.NoError(t, src.Close())

	assert.Panics(t, func() { NewHeapBufferSource(-1) })
}

func TestNewBufferSource(t *testing.T) {
	src, err := NewBufferSource(1024 * 1024)
	require.NoError(t, err)
	testBufferSource(t, src, 1024*1024)

	src, err = NewBufferSourceWithOption(256*1024, &SourceOption{Name: "test-buf", Populate: true})
	require.NoError(t, err)
	testBufferSource(t, src, 256*1024)

	_, err = NewBufferSource(0)
	assert.Error(t, err)
	_, err = NewBufferSource(-1)
	assert.Error(t, err)
}

func TestDefaultSourceOption(t *testing.T) {
	o := DefaultSourceOption()
	assert.Equal(t, "transfer-buf", o.Name)
	assert.False(t, o.Populate)
}

func TestAllocatorOnPlatformSource(t *testing.T) {
	src, err := NewBufferSource(1024 * 1024)
	require.NoError(t, err)
	a := NewBufferAllocator(8192, src)

	buf, _ := a.TryAllocateBuffer(100 * 1024)
	require.NotNil(t, buf)
	buf.AsMut().Fill(0x33)
	assert.Equal(t, repeat(0x33, 100*1024), src.SubSlice(buf.Range()))
	buf.Release()

	assert.NoError(t, a.Close())
}
