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

// Package bufalloc carves block-aligned I/O buffers out of one large
// pre-reserved memory region using a buddy allocator.
//
// Buffers are handed out as disjoint views of a shared BufferSource. The
// allocator's bookkeeping is the only thing keeping two live buffers from
// aliasing the same bytes, so a Buffer must not be used after Release.
package bufalloc

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gopkg/collection/skipmap"
	"github.com/bytedance/gopkg/util/logger"
)

var debugLog atomic.Bool

// SetDebugLog turns the per-allocation debug records on or off. They are off
// by default so the allocation path doesn't format anything.
func SetDebugLog(enabled bool) {
	debugLog.Store(enabled)
}

// ErrBuffersOutstanding is returned by Close while buffers are still live.
var ErrBuffersOutstanding = errors.New("bufalloc: buffers outstanding")

// BufferAllocator creates Buffers to be used for block device I/O requests.
//
// Free space is tracked as per-order lists of block offsets, where a block of
// order k spans blockSize<<k bytes and is aligned to its own size. Allocation
// splits the smallest suitable free block and freeing merges a block with its
// buddy for as long as the buddy is free.
//
// Allocation and deallocation are O(lg(N) + M), where N = size and M = number
// of free blocks at the visited orders.
type BufferAllocator struct {
	blockSize int
	size      int // size of source, kept for bounds checks after TakeBufferSource

	mu     sync.Mutex
	source BufferSource

	// freeLists[k] holds the sorted offsets of free blocks of order k.
	freeLists [][]int

	// allocationMap maps the offset of a live block to its reserved size,
	// which is the rounded block size rather than the size requested.
	allocationMap *skipmap.IntMap

	event *event
}

// NewBufferAllocator creates an allocator which owns src.
// blockSize must be a power of two no larger than src.Size().
// Trailing bytes of src beyond a multiple of blockSize are never handed out.
func NewBufferAllocator(blockSize int, src BufferSource) *BufferAllocator {
	if !isPowerOfTwo(blockSize) {
		panic(fmt.Sprintf("bufalloc: block size must be a power of two, got %d", blockSize))
	}
	if blockSize > src.Size() {
		panic(fmt.Sprintf("bufalloc: block size %d exceeds source size %d", blockSize, src.Size()))
	}
	return &BufferAllocator{
		blockSize:     blockSize,
		size:          src.Size(),
		source:        src,
		freeLists:     initialFreeLists(src.Size(), blockSize),
		allocationMap: skipmap.NewInt(),
		event:         newEvent(),
	}
}

// initialFreeLists covers the usable span greedily with the largest aligned
// power-of-two chunks, so an odd-sized span starts out as O(lg N) free blocks.
func initialFreeLists(size, blockSize int) [][]int {
	size = roundDown(size, blockSize)
	maxOrder := orderFit(size, blockSize)
	freeLists := make([][]int, maxOrder+1)
	for offset := 0; offset < size; {
		o := orderFit(size-offset, blockSize)
		freeLists[o] = append(freeLists[o], offset)
		offset += sizeForOrder(o, blockSize)
	}
	return freeLists
}

// BlockSize returns the allocation granularity and alignment.
func (a *BufferAllocator) BlockSize() int {
	return a.blockSize
}

// BufferSource returns the source buffers are carved from.
// It returns nil after TakeBufferSource or Close.
func (a *BufferAllocator) BufferSource() BufferSource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

// TakeBufferSource detaches the source from the allocator, which must not be
// used afterwards. The caller must make sure no buffers are outstanding.
func (a *BufferAllocator) TakeBufferSource() BufferSource {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := a.allocationMap.Len(); n > 0 {
		logger.Warnf("bufalloc: taking buffer source with %d buffers outstanding", n)
	}
	src := a.source
	a.source = nil
	return src
}

// Close releases the source. It fails with ErrBuffersOutstanding, leaving the
// allocator usable, if any buffer has not been released yet.
func (a *BufferAllocator) Close() error {
	a.mu.Lock()
	if n := a.allocationMap.Len(); n > 0 {
		a.mu.Unlock()
		logger.Warnf("bufalloc: closing allocator with %d buffers outstanding", n)
		return fmt.Errorf("%w: %d", ErrBuffersOutstanding, n)
	}
	src := a.source
	a.source = nil
	a.mu.Unlock()
	if src == nil {
		return nil
	}
	return src.Close()
}

// AllocateBuffer returns a future for a Buffer of size bytes. The future
// resolves once enough contiguous space is free, which may be never if the
// caller holds the buffers that would have to be released.
//
// It panics if size exceeds the pool.
func (a *BufferAllocator) AllocateBuffer(size int) *BufferFuture {
	a.checkSize(size)
	return &BufferFuture{allocator: a, size: size}
}

// TryAllocateBuffer allocates a Buffer of size bytes without blocking.
//
// The buffer is block-aligned and backed by a power-of-two number of blocks,
// but only the first size bytes are visible through it.
//
// If no free block is large enough, it returns a nil Buffer and a Listener
// which is closed the next time a buffer is freed. The caller should retry
// then, without assuming the retry will succeed.
//
// It panics if size exceeds the pool.
func (a *BufferAllocator) TryAllocateBuffer(size int) (*Buffer, Listener) {
	a.checkSize(size)
	buf, reserved, l := a.reserve(size)
	if l != nil {
		return nil, l
	}
	if debugLog.Load() {
		logger.Debugf("bufalloc: allocated %v, bytes used %d", buf.Range(), reserved)
	}
	return buf, nil
}

func (a *BufferAllocator) checkSize(size int) {
	if size < 0 || size > a.size {
		panic(fmt.Sprintf("bufalloc: allocation of %d bytes would exceed limit %d", size, a.size))
	}
	if order(size, a.blockSize) >= len(a.freeLists) {
		panic(fmt.Sprintf("bufalloc: allocation of %d bytes exceeds the largest block of %d bytes",
			size, sizeForOrder(len(a.freeLists)-1, a.blockSize)))
	}
}

// reserve takes a block for size bytes out of the free lists, or returns a
// listener registered while the lock was held.
func (a *BufferAllocator) reserve(size int) (buf *Buffer, reserved int, l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		panic("bufalloc: allocator used after its buffer source was released")
	}

	requested := order(size, a.blockSize)
	// pick the smallest order with a free block
	o := requested
	for o < len(a.freeLists) && len(a.freeLists[o]) == 0 {
		o++
	}
	if o == len(a.freeLists) {
		return nil, 0, a.event.listen()
	}

	list := a.freeLists[o]
	offset := list[len(list)-1]
	a.freeLists[o] = list[:len(list)-1]

	// split until it's the right size, the upper halves become free buddies
	for o > requested {
		o--
		a.insertFree(o, offset+a.sizeForOrder(o))
	}

	reserved = a.sizeForOrder(requested)
	a.allocationMap.Store(offset, reserved)
	r := Range{Start: offset, End: offset + size}
	// the allocator never hands out overlapping live ranges
	return newBuffer(a, r, a.source.SubSlice(r)), reserved, nil
}

// freeBuffer returns the block starting at r.Start to the free lists,
// merging it with free buddies, and wakes every waiting allocation.
func (a *BufferAllocator) freeBuffer(r Range) {
	reserved := a.release(r)
	if debugLog.Load() {
		logger.Debugf("bufalloc: freed %v, bytes used %d", r, reserved)
	}
	// wake everyone, each waiter retries on its own
	a.event.notifyAll()
}

func (a *BufferAllocator) release(r Range) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.allocationMap.Load(r.Start)
	if !ok {
		panic(fmt.Sprintf("bufalloc: no allocation record found for %v", r))
	}
	reserved := v.(int)
	if r.Len() > reserved {
		panic(fmt.Sprintf("bufalloc: range %v exceeds reserved size %d", r, reserved))
	}
	a.allocationMap.Delete(r.Start)

	offset := r.Start
	o := order(reserved, a.blockSize)
	for o < len(a.freeLists)-1 {
		buddy := a.findBuddy(offset, o)
		idx, found := slices.BinarySearch(a.freeLists[o], buddy)
		if !found {
			break
		}
		a.freeLists[o] = slices.Delete(a.freeLists[o], idx, idx+1)
		offset = min(offset, buddy)
		o++
	}
	a.insertFree(o, offset)
	return reserved
}

// insertFree adds offset to the free list of order o, keeping it sorted.
func (a *BufferAllocator) insertFree(o, offset int) {
	idx, found := slices.BinarySearch(a.freeLists[o], offset)
	if found {
		panic(fmt.Sprintf("bufalloc: unexpectedly found %d in free list %d", offset, o))
	}
	a.freeLists[o] = slices.Insert(a.freeLists[o], idx, offset)
}

func (a *BufferAllocator) sizeForOrder(o int) int {
	return sizeForOrder(o, a.blockSize)
}

func (a *BufferAllocator) findBuddy(offset, o int) int {
	return offset ^ a.sizeForOrder(o)
}

// Stats is a point-in-time view of an allocator's bookkeeping.
// FreeBytes + AllocatedBytes always equals UsableBytes.
type Stats struct {
	BlockSize      int
	UsableBytes    int // source size rounded down to BlockSize
	FreeBytes      int
	AllocatedBytes int // reserved block sizes, not requested sizes
	Allocations    int
	FreeBlocks     []int // FreeBlocks[k] is the number of free blocks of order k
}

// Stats returns a snapshot of the allocator's state.
func (a *BufferAllocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{
		BlockSize:   a.blockSize,
		UsableBytes: roundDown(a.size, a.blockSize),
		FreeBlocks:  make([]int, len(a.freeLists)),
	}
	for o, list := range a.freeLists {
		s.FreeBlocks[o] = len(list)
		s.FreeBytes += len(list) * a.sizeForOrder(o)
	}
	a.allocationMap.Range(func(_ int, v interface{}) bool {
		s.AllocatedBytes += v.(int)
		s.Allocations++
		return true
	})
	return s
}
