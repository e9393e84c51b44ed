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
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// bufferView is a window onto a BufferSource. r is in absolute source offsets.
type bufferView struct {
	data []byte
	r    Range
}

// Len returns the number of bytes in the view.
func (v bufferView) Len() int {
	return len(v.data)
}

// Range returns the absolute range of the view within its BufferSource.
func (v bufferView) Range() Range {
	return v.r
}

// Clone copies the bytes of the view into newly allocated memory.
func (v bufferView) Clone() []byte {
	b := dirtmake.Bytes(len(v.data), len(v.data))
	copy(b, v.data)
	return b
}

func (v bufferView) subslice(start, end int) bufferView {
	if start < 0 || start > end || end > len(v.data) {
		panic(fmt.Sprintf("bufalloc: subslice [%d:%d] out of range for buffer of %d bytes", start, end, len(v.data)))
	}
	return bufferView{
		data: v.data[start:end:end],
		r:    Range{Start: v.r.Start + start, End: v.r.Start + end},
	}
}

func (v bufferView) splitAt(mid int) (bufferView, bufferView) {
	if mid < 0 || mid > len(v.data) {
		panic(fmt.Sprintf("bufalloc: split at %d out of range for buffer of %d bytes", mid, len(v.data)))
	}
	return v.subslice(0, mid), v.subslice(mid, len(v.data))
}

// BufferRef is a read-only view of part of a Buffer.
// It is only valid until the Buffer is released.
type BufferRef struct {
	bufferView
}

// Bytes returns the bytes of the view. They must not be modified.
func (b BufferRef) Bytes() []byte {
	return b.data
}

// Subslice returns the view of bytes [start, end) of b.
func (b BufferRef) Subslice(start, end int) BufferRef {
	return BufferRef{b.subslice(start, end)}
}

// SplitAt divides b into [0, mid) and [mid, Len()).
func (b BufferRef) SplitAt(mid int) (BufferRef, BufferRef) {
	l, r := b.splitAt(mid)
	return BufferRef{l}, BufferRef{r}
}

// MutableBufferRef is a writable view of part of a Buffer.
// It is only valid until the Buffer is released.
type MutableBufferRef struct {
	bufferView
}

// Bytes returns the bytes of the view.
func (b MutableBufferRef) Bytes() []byte {
	return b.data
}

// Fill sets every byte of the view to c.
func (b MutableBufferRef) Fill(c byte) {
	fill(b.data, c)
}

// AsRef returns a read-only view of the same bytes.
func (b MutableBufferRef) AsRef() BufferRef {
	return BufferRef(b)
}

// Reborrow returns a view of the same bytes for short-lived use, such as
// narrowing with SubsliceMut while keeping b.
func (b MutableBufferRef) Reborrow() MutableBufferRef {
	return b
}

// Subslice returns a read-only view of bytes [start, end) of b.
func (b MutableBufferRef) Subslice(start, end int) BufferRef {
	return BufferRef{b.subslice(start, end)}
}

// SubsliceMut returns a writable view of bytes [start, end) of b.
func (b MutableBufferRef) SubsliceMut(start, end int) MutableBufferRef {
	return MutableBufferRef{b.subslice(start, end)}
}

// SplitAt divides b into read-only views of [0, mid) and [mid, Len()).
func (b MutableBufferRef) SplitAt(mid int) (BufferRef, BufferRef) {
	l, r := b.splitAt(mid)
	return BufferRef{l}, BufferRef{r}
}

// SplitAtMut divides b into disjoint writable views of [0, mid) and
// [mid, Len()), which may be handed to independent writers.
func (b MutableBufferRef) SplitAtMut(mid int) (MutableBufferRef, MutableBufferRef) {
	l, r := b.splitAt(mid)
	return MutableBufferRef{l}, MutableBufferRef{r}
}

// Buffer is an allocated byte range. It is the only handle which returns the
// range to its allocator; views derived from it never do.
type Buffer struct {
	bufferView
	allocator atomic.Pointer[BufferAllocator]
}

func newBuffer(a *BufferAllocator, r Range, data []byte) *Buffer {
	b := &Buffer{bufferView: bufferView{data: data, r: r}}
	b.allocator.Store(a)
	return b
}

// Bytes returns the bytes of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Allocator returns the allocator b came from, or nil once released.
func (b *Buffer) Allocator() *BufferAllocator {
	return b.allocator.Load()
}

// AsRef returns a read-only view of the whole buffer.
func (b *Buffer) AsRef() BufferRef {
	return BufferRef{b.bufferView}
}

// AsMut returns a writable view of the whole buffer.
func (b *Buffer) AsMut() MutableBufferRef {
	return MutableBufferRef{b.bufferView}
}

// Subslice returns a read-only view of bytes [start, end) of b.
func (b *Buffer) Subslice(start, end int) BufferRef {
	return BufferRef{b.subslice(start, end)}
}

// SubsliceMut returns a writable view of bytes [start, end) of b.
func (b *Buffer) SubsliceMut(start, end int) MutableBufferRef {
	return MutableBufferRef{b.subslice(start, end)}
}

// SplitAt divides b into read-only views of [0, mid) and [mid, Len()).
func (b *Buffer) SplitAt(mid int) (BufferRef, BufferRef) {
	return b.AsRef().SplitAt(mid)
}

// SplitAtMut divides b into disjoint writable views of [0, mid) and [mid, Len()).
func (b *Buffer) SplitAtMut(mid int) (MutableBufferRef, MutableBufferRef) {
	return b.AsMut().SplitAtMut(mid)
}

// Release returns the buffer to its allocator and wakes pending allocations.
// Neither b nor any view derived from it may be used afterwards.
// Releasing a buffer twice panics.
func (b *Buffer) Release() {
	a := b.allocator.Swap(nil)
	if a == nil {
		panic(fmt.Sprintf("bufalloc: buffer %v released twice", b.r))
	}
	b.data = nil
	a.freeBuffer(b.r)
}

func fill(b []byte, c byte) {
	if len(b) == 0 {
		return
	}
	b[0] = c
	for i := 1; i < len(b); i *= 2 {
		copy(b[i:], b[:i])
	}
}
