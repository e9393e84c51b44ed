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

import "context"

// BufferFuture is a pending allocation returned by AllocateBuffer.
//
// It holds no allocator state: a future that is dropped before it resolves
// has no effect on the allocator.
type BufferFuture struct {
	allocator *BufferAllocator
	size      int
	listener  Listener
}

// Poll attempts the allocation once. It returns false if the pool can't
// satisfy the request yet, in which case Ready tells when to poll again.
func (f *BufferFuture) Poll() (*Buffer, bool) {
	if f.listener != nil {
		select {
		case <-f.listener:
		default:
			return nil, false
		}
	}
	// The listener may already be closed when we get it, if a buffer was
	// freed in between, so keep retrying until we hold a pending one.
	for {
		buf, l := f.allocator.TryAllocateBuffer(f.size)
		if buf != nil {
			f.listener = nil
			return buf, true
		}
		select {
		case <-l:
		default:
			f.listener = l
			return nil, false
		}
	}
}

// Ready returns a channel that is closed when Poll is worth calling again.
// Before the first Poll it is already closed.
func (f *BufferFuture) Ready() <-chan struct{} {
	if f.listener == nil {
		return closedChan
	}
	return f.listener
}

// Wait blocks until the allocation succeeds or ctx is done.
// The only error it returns is ctx.Err().
func (f *BufferFuture) Wait(ctx context.Context) (*Buffer, error) {
	for {
		if buf, ok := f.Poll(); ok {
			return buf, nil
		}
		select {
		case <-f.listener:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
