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

package serde

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/window"
)

// Writer packs encoded slices into transport buffers taken from a buffer manager. A slice
// may span buffers; every buffer records the bytes in use as its size and the number of
// slices starting in it as its tuple count.
type Writer struct {
	manager *buffer.Manager
	pooled  bool
	chunk   int
}

// NewPooledWriter returns a writer filling pooled buffers. It blocks while the pool is
// exhausted.
func NewPooledWriter(manager *buffer.Manager) *Writer {
	return &Writer{manager: manager, pooled: true, chunk: manager.BufferSize()}
}

// NewUnpooledWriter returns a writer using unpooled buffers of at most chunk bytes. A
// chunk of 0 puts everything into a single buffer.
func NewUnpooledWriter(manager *buffer.Manager, chunk int) *Writer {
	return &Writer{manager: manager, chunk: chunk}
}

func (w *Writer) get(ctx context.Context, size int) (*buffer.Buffer, error) {
	if w.pooled {
		return w.manager.GetBufferBlocking(ctx)
	}
	return w.manager.GetUnpooledBuffer(size)
}

// Write encodes slices into as many buffers as needed. On error every buffer taken so far
// is released.
func (w *Writer) Write(ctx context.Context, slices []*window.Slice) (out []*buffer.Buffer, err error) {
	var data bytes.Buffer
	starts := make([]int, 0, len(slices))
	for _, s := range slices {
		starts = append(starts, data.Len())
		if err := EncodeTo(&data, s); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s, err)
		}
	}
	if data.Len() == 0 {
		return nil, nil
	}
	defer func() {
		if err != nil {
			for _, b := range out {
				b.Release()
			}
			out = nil
		}
	}()

	raw := data.Bytes()
	chunk := w.chunk
	if chunk <= 0 {
		chunk = len(raw)
	}
	for off := 0; off < len(raw); {
		n := min(chunk, len(raw)-off)
		b, err := w.get(ctx, n)
		if err != nil {
			return out, fmt.Errorf("failed to get a transport buffer: %w", err)
		}
		out = append(out, b)
		n = min(n, b.Capacity())
		copy(b.Bytes(), raw[off:off+n])
		b.SetSize(uint64(n))
		var tuples uint64
		for _, st := range starts {
			if st >= off && st < off+n {
				tuples++
			}
		}
		b.SetNumberOfTuples(tuples)
		off += n
	}
	return out, nil
}

// ReadBuffers decodes every slice packed into bufs by a Writer. The buffers are not
// released.
func ReadBuffers(bufs []*buffer.Buffer, fn *aggregation.Function) ([]*window.Slice, error) {
	readers := make([]io.Reader, 0, len(bufs))
	for _, b := range bufs {
		readers = append(readers, bytes.NewReader(b.Bytes()[:b.Size()]))
	}
	return DecodeAll(io.MultiReader(readers...), fn)
}
