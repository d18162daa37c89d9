package optimizer

import (
	"sync"
	"sync/atomic"

	"github.com/coproportal/imageopt/pkg/metrics"
)

const (
	smallBuffer  = 64 * 1024       // thumbnails, tiny encodes
	mediumBuffer = 512 * 1024      // typical encoder output
	largeBuffer  = 2 * 1024 * 1024 // large encoder output
	xlargeBuffer = 8 * 1024 * 1024 // 1920x1080 RGBA surface
)

// BufferPool manages reusable byte slices for encoder output and surface pixels
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
	xlarge sync.Pool
}

func newTier(size int) sync.Pool {
	return sync.Pool{
		New: func() interface{} {
			b := make([]byte, 0, size)
			return &b
		},
	}
}

var globalBufferPool = &BufferPool{
	small:  newTier(smallBuffer),
	medium: newTier(mediumBuffer),
	large:  newTier(largeBuffer),
	xlarge: newTier(xlargeBuffer),
}

// GetBuffer returns an empty slice with at least the requested capacity.
// Requests above the largest tier are allocated directly and never pooled.
func GetBuffer(size int) *[]byte {
	switch {
	case size <= smallBuffer:
		return globalBufferPool.small.Get().(*[]byte)
	case size <= mediumBuffer:
		return globalBufferPool.medium.Get().(*[]byte)
	case size <= largeBuffer:
		return globalBufferPool.large.Get().(*[]byte)
	case size <= xlargeBuffer:
		return globalBufferPool.xlarge.Get().(*[]byte)
	default:
		b := make([]byte, 0, size)
		return &b
	}
}

// PutBuffer returns a buffer to the pool matching its capacity
func PutBuffer(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]

	switch cap(*b) {
	case smallBuffer:
		globalBufferPool.small.Put(b)
	case mediumBuffer:
		globalBufferPool.medium.Put(b)
	case largeBuffer:
		globalBufferPool.large.Put(b)
	case xlargeBuffer:
		globalBufferPool.xlarge.Put(b)
		// grown or oversized buffers are left to the GC
	}
}

// PooledBuffer is an io.Writer over a pooled slice
type PooledBuffer struct {
	buf *[]byte
}

// NewPooledBuffer creates a pooled buffer sized for the expected output
func NewPooledBuffer(size int) *PooledBuffer {
	return &PooledBuffer{buf: GetBuffer(size)}
}

// Write appends p, growing past the pooled capacity when needed
func (p *PooledBuffer) Write(data []byte) (int, error) {
	*p.buf = append(*p.buf, data...)
	return len(data), nil
}

// Bytes returns the underlying byte slice
func (p *PooledBuffer) Bytes() []byte {
	return *p.buf
}

// Reset clears the buffer
func (p *PooledBuffer) Reset() {
	*p.buf = (*p.buf)[:0]
}

// Len returns the current length
func (p *PooledBuffer) Len() int {
	return len(*p.buf)
}

// Release returns the buffer to the pool
func (p *PooledBuffer) Release() {
	if p.buf == nil {
		return
	}
	PutBuffer(p.buf)
	p.buf = nil
}

// ToBytes copies the contents out and releases the pooled buffer
func (p *PooledBuffer) ToBytes() []byte {
	result := make([]byte, len(*p.buf))
	copy(result, *p.buf)
	p.Release()
	return result
}

// openHandles counts bitmaps and surfaces that have been acquired but not released.
var openHandles atomic.Int64

// OpenHandles reports the number of live decode and surface handles.
func OpenHandles() int64 {
	return openHandles.Load()
}

func acquireHandle() {
	metrics.UpdateOpenHandles(openHandles.Add(1))
}

func releaseHandle() {
	metrics.UpdateOpenHandles(openHandles.Add(-1))
}
