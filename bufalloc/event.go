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

import "sync"

// Listener is closed when the allocator frees a buffer. Receiving from it
// is only a hint to retry: the freed space may already be taken by another
// caller by the time the receiver runs.
type Listener <-chan struct{}

// event is a wake-all notification channel.
// Every listen() since the last notifyAll() shares one channel, which
// notifyAll() closes and replaces.
type event struct {
	mu       sync.Mutex
	ch       chan struct{}
	listened bool
}

func newEvent() *event {
	return &event{ch: make(chan struct{})}
}

func (e *event) listen() Listener {
	e.mu.Lock()
	ch := e.ch
	e.listened = true
	e.mu.Unlock()
	return ch
}

func (e *event) notifyAll() {
	e.mu.Lock()
	// nobody holds the current channel, no need to replace it
	if e.listened {
		close(e.ch)
		e.ch = make(chan struct{})
		e.listened = false
	}
	e.mu.Unlock()
}
