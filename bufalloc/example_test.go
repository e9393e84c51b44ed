package bufalloc

import (
	"context"
	"fmt"
)

func Example() {
	a := NewBufferAllocator(8192, NewHeapBufferSource(1024*1024))

	b1, _ := a.TryAllocateBuffer(1024)        // one 8KB block
	b2, _ := a.TryAllocateBuffer(3 * 8192)    // rounded up to 4 blocks
	b3, _ := a.TryAllocateBuffer(1024 * 1024) // doesn't fit while b1 and b2 are live

	fmt.Printf("b1: range=%v len=%d\n", b1.Range(), b1.Len())
	fmt.Printf("b2: range=%v len=%d\n", b2.Range(), b2.Len())
	fmt.Printf("b3: %v\n", b3 == nil)

	fut := a.AllocateBuffer(1024 * 1024)
	b1.Release()
	b2.Release()
	b3, _ = fut.Wait(context.Background())
	fmt.Printf("b3: range=%v len=%d\n", b3.Range(), b3.Len())
	b3.Release()

	// Output:
	// b1: range=0..1024 len=1024
	// b2: range=32768..57344 len=24576
	// b3: true
	// b3: range=0..1048576 len=1048576
}
