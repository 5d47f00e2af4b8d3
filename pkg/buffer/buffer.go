/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package buffer

import (
	"fmt"

	"go.uber.org/atomic"
)

// segment is the memory behind one or more Buffer handles. The segment goes back to its
// manager once the last handle is released.
type segment struct {
	id      int
	pooled  bool
	data    []byte
	refs    *atomic.Int32
	manager *Manager

	size           uint64
	numberOfTuples uint64
	watermark      uint64
	sequenceNumber uint64
	originID       uint64
}

func (s *segment) resetMetadata() {
	s.size = 0
	s.numberOfTuples = 0
	s.watermark = 0
	s.sequenceNumber = 0
	s.originID = 0
}

func (s *segment) String() string {
	kind := "unpooled"
	if s.pooled {
		kind = "pooled"
	}
	return fmt.Sprintf("%s segment %d (%d bytes)", kind, s.id, len(s.data))
}

// Buffer is a reference counted handle to a segment. Each handle must be released exactly
// once; Retain hands out an additional handle to the same memory.
type Buffer struct {
	seg      *segment
	released *atomic.Bool
}

func newHandle(s *segment) *Buffer {
	return &Buffer{seg: s, released: atomic.NewBool(false)}
}

func (b *Buffer) mustBeLive() {
	if b.released.Load() {
		panic(fmt.Sprintf("buffer: use of released handle to %s", b.seg))
	}
}

// Retain increments the reference count and returns a new handle.
func (b *Buffer) Retain() *Buffer {
	b.mustBeLive()
	b.seg.refs.Inc()
	return newHandle(b.seg)
}

// Release gives up this handle. The memory is recycled by the last release.
func (b *Buffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("buffer: double release of %s", b.seg))
	}
	n := b.seg.refs.Dec()
	switch {
	case n < 0:
		panic(fmt.Sprintf("buffer: negative reference count on %s", b.seg))
	case n == 0:
		b.seg.manager.recycle(b.seg)
	}
}

// References returns the current reference count of the underlying segment.
func (b *Buffer) References() int32 {
	return b.seg.refs.Load()
}

// Pooled reports whether the buffer belongs to the fixed pool.
func (b *Buffer) Pooled() bool {
	return b.seg.pooled
}

// Bytes returns the whole backing memory.
func (b *Buffer) Bytes() []byte {
	b.mustBeLive()
	return b.seg.data
}

// Capacity returns the size of the backing memory in bytes.
func (b *Buffer) Capacity() int {
	return len(b.seg.data)
}

// Size returns the number of bytes in use.
func (b *Buffer) Size() uint64 { return b.seg.size }

func (b *Buffer) SetSize(n uint64) { b.seg.size = n }

func (b *Buffer) NumberOfTuples() uint64 { return b.seg.numberOfTuples }

func (b *Buffer) SetNumberOfTuples(n uint64) { b.seg.numberOfTuples = n }

func (b *Buffer) Watermark() uint64 { return b.seg.watermark }

func (b *Buffer) SetWatermark(w uint64) { b.seg.watermark = w }

func (b *Buffer) SequenceNumber() uint64 { return b.seg.sequenceNumber }

func (b *Buffer) SetSequenceNumber(n uint64) { b.seg.sequenceNumber = n }

func (b *Buffer) OriginID() uint64 { return b.seg.originID }

func (b *Buffer) SetOriginID(id uint64) { b.seg.originID = id }

func (b *Buffer) String() string {
	return fmt.Sprintf("%s{size=%d, tuples=%d, wm=%d, seq=%d, origin=%d}", b.seg, b.seg.size, b.seg.numberOfTuples, b.seg.watermark, b.seg.sequenceNumber, b.seg.originID)
}

func atomicZero() *atomic.Int32 {
	return atomic.NewInt32(0)
}
