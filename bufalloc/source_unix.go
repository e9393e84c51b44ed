//go:build unix && !linux

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

	"golang.org/x/sys/unix"
)

// mmapSource is an anonymous private mapping.
type mmapSource struct {
	data []byte
}

func newPlatformSource(size int, o *SourceOption) (BufferSource, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("bufalloc: mmap %d bytes: %w", size, err)
	}
	s := &mmapSource{data: data}
	if o.Populate {
		if err = s.CommitRange(Range{Start: 0, End: size}); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *mmapSource) Size() int {
	return len(s.data)
}

func (s *mmapSource) SubSlice(r Range) []byte {
	checkSubSlice(r, len(s.data))
	return s.data[r.Start:r.End:r.End]
}

// CommitRange asks the kernel to fault in the pages covering r.
func (s *mmapSource) CommitRange(r Range) error {
	checkSubSlice(r, len(s.data))
	return madviseWillNeed(s.data, r)
}

func (s *mmapSource) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if err != nil {
		return fmt.Errorf("bufalloc: munmap: %w", err)
	}
	return nil
}
