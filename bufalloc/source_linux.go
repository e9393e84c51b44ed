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

// memfdSource maps an anonymous memfd so the region can be shared with a
// block device server through its file descriptor.
type memfdSource struct {
	fd   int
	data []byte
}

func newPlatformSource(size int, o *SourceOption) (BufferSource, error) {
	fd, err := unix.MemfdCreate(o.Name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("bufalloc: memfd_create %q: %w", o.Name, err)
	}
	if err = unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bufalloc: ftruncate memfd to %d bytes: %w", size, err)
	}
	flags := unix.MAP_SHARED
	if o.Populate {
		flags |= unix.MAP_POPULATE
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bufalloc: mmap %d bytes: %w", size, err)
	}
	return &memfdSource{fd: fd, data: data}, nil
}

func (s *memfdSource) Size() int {
	return len(s.data)
}

func (s *memfdSource) SubSlice(r Range) []byte {
	checkSubSlice(r, len(s.data))
	return s.data[r.Start:r.End:r.End]
}

func (s *memfdSource) Fd() uintptr {
	return uintptr(s.fd)
}

// CommitRange allocates backing pages for r and asks the kernel to fault them in.
func (s *memfdSource) CommitRange(r Range) error {
	checkSubSlice(r, len(s.data))
	if err := unix.Fallocate(s.fd, 0, int64(r.Start), int64(r.Len())); err != nil {
		return fmt.Errorf("bufalloc: fallocate %v: %w", r, err)
	}
	return madviseWillNeed(s.data, r)
}

func (s *memfdSource) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.fd); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("bufalloc: release memfd source: %w", err)
	}
	return nil
}
