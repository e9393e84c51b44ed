//go:build unix

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
	"os"

	"golang.org/x/sys/unix"
)

// madviseWillNeed widens r to page boundaries, since madvise wants an aligned start.
func madviseWillNeed(data []byte, r Range) error {
	page := os.Getpagesize()
	start := roundDown(r.Start, page)
	end := min(roundUp(r.End, page), len(data))
	if err := unix.Madvise(data[start:end], unix.MADV_WILLNEED); err != nil {
		return fmt.Errorf("bufalloc: madvise %v: %w", r, err)
	}
	return nil
}
