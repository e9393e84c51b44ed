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

import "math/bits"

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}

func roundDown(n, align int) int {
	return n / align * align
}

// order returns the smallest order whose block size holds size bytes.
func order(size, blockSize int) int {
	if size <= blockSize {
		return 0
	}
	nblocks := roundUp(size, blockSize) / blockSize
	return bits.Len(uint(nblocks - 1))
}

// orderFit returns the largest order whose block size is no more than size bytes.
// size must be >= blockSize.
func orderFit(size, blockSize int) int {
	if size < blockSize {
		panic("bufalloc: orderFit called with size < blockSize")
	}
	return bits.Len(uint(size/blockSize)) - 1
}

func sizeForOrder(order, blockSize int) int {
	return blockSize << order
}
