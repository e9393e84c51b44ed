/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bufalloc

import (
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"
)

// Range is a half-open byte range [Start, End) inside a BufferSource.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether off falls inside r.
func (r Range) Contains(off int) bool {
	return off >= r.Start && off < r.End
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// BufferSource owns one contiguous memory region that a BufferAllocator carves
// buffers out of.
//
// SubSlice performs bounds checks only. Keeping the returned slices disjoint is
// the job of the allocator, so callers other than BufferAllocator should not
// hand out writable views of the same source.
type BufferSource interface {
	// Size returns the size of the region in bytes. It never changes.
	Size() int

	// SubSlice returns the bytes in r. It panics if r is out of bounds.
	SubSlice(r Range) []byte

	// Close releases the region. No slice returned by SubSlice may be used afterwards.
	Close() error
}

// Committer is implemented by sources which can populate their backing
// memory ahead of use to avoid page faults on the I/O path.
type Committer interface {
	CommitRange(r Range) error
}

// FileBacked is implemented by sources whose memory can be shared with other
// processes through a file descriptor.
type FileBacked interface {
	Fd() uintptr
}

// SourceOption configures NewBufferSourceWithOption.
type SourceOption struct {
	// Name labels the memory object where the platform supports it.
	Name string

	// Populate pre-faults the whole region on creation.
	Populate bool
}

// DefaultSourceOption returns the default values of SourceOption.
func DefaultSourceOption() *SourceOption {
	return &SourceOption{
		Name:     "transfer-buf",
		Populate: false,
	}
}

// NewBufferSource creates a zero-filled source of size bytes using the best
// backing store available on the current platform.
func NewBufferSource(size int) (BufferSource, error) {
	return NewBufferSourceWithOption(size, nil)
}

// NewBufferSourceWithOption is like NewBufferSource, with options.
// A nil option means DefaultSourceOption().
func NewBufferSourceWithOption(size int, o *SourceOption) (BufferSource, error) {
	if size <= 0 {
		return nil, fmt.Errorf("bufalloc: invalid buffer source size %d", size)
	}
	if o == nil {
		o = DefaultSourceOption()
	}
	return newPlatformSource(size, o)
}

func checkSubSlice(r Range, size int) {
	if r.Start < 0 || r.Start > r.End || r.Start >= size || r.End > size {
		panic(fmt.Sprintf("bufalloc: range %v out of bounds for source of %d bytes", r, size))
	}
}

// heapSource is a BufferSource backed by ordinary Go memory.
type heapSource struct {
	data []byte
}

// NewHeapBufferSource creates a zero-filled source of size bytes on the Go heap.
// It is available on every platform.
func NewHeapBufferSource(size int) BufferSource {
	if size < 0 {
		panic(fmt.Sprintf("bufalloc: invalid buffer source size %d", size))
	}
	if size == 0 {
		return &heapSource{data: []byte{}}
	}
	// mcache may hand back recycled memory
	data := mcache.Malloc(size)
	for i := range data {
		data[i] = 0
	}
	return &heapSource{data: data}
}

func (s *heapSource) Size() int {
	return len(s.data)
}

func (s *heapSource) SubSlice(r Range) []byte {
	checkSubSlice(r, len(s.data))
	return s.data[r.Start:r.End:r.End]
}

func (s *heapSource) Close() error {
	if cap(s.data) > 0 {
		mcache.Free(s.data)
	}
	s.data = nil
	return nil
}
