package bufalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMemfdSourceIsShared(t *testing.T) {
	src, err := NewBufferSource(64 * 1024)
	require.NoError(t, err)
	defer src.Close()

	fb, ok := src.(FileBacked)
	require.True(t, ok, "linux source should expose its memfd")
	fd := int(fb.Fd())

	b := src.SubSlice(Range{Start: 4096, End: 8192})
	fill(b, 0x5c)

	// writes through the mapping are visible through the descriptor
	got := make([]byte, 4096)
	n, err := unix.Pread(fd, got, 4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, repeat(0x5c, 4096), got)

	// and the other way round
	_, err = unix.Pwrite(fd, repeat(0x6d, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, repeat(0x6d, 10), src.SubSlice(Range{Start: 0, End: 10}))
}
