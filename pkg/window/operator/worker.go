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

package operator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/serde"
	"github.com/numaproj/numaslice/pkg/window/trigger"
)

// worker owns one slice store. Only its goroutine touches the store until Run of the
// operator performs the final flush.
type worker struct {
	id     int
	label  string
	op     *Operator
	store  sliceStore
	// writer encodes flushed slices into transport buffers
	writer *serde.Writer

	// target is the highest watermark a flush was requested for
	target  *atomic.Uint64
	// flushCh signals a pending flush request
	flushCh chan struct{}
	// flushed is the watermark of the last publication
	flushed uint64
	log     *zap.SugaredLogger
}

func (w *worker) requestFlush(watermark uint64) {
	for {
		cur := w.target.Load()
		if watermark <= cur || w.target.CompareAndSwap(cur, watermark) {
			break
		}
	}
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

// run processes input buffers until in is closed. Pending flush requests are served
// before the next buffer is read.
func (w *worker) run(ctx context.Context, in <-chan *buffer.Buffer) error {
	for {
		select {
		case <-w.flushCh:
			if err := w.flush(ctx, w.target.Load()); err != nil {
				return err
			}
			continue
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.flushCh:
			if err := w.flush(ctx, w.target.Load()); err != nil {
				return err
			}
		case b, ok := <-in:
			if !ok {
				return nil
			}
			if err := w.process(ctx, b); err != nil {
				return err
			}
		}
	}
}

// process lifts every record of b, releases b and then reports its watermark.
func (w *worker) process(ctx context.Context, b *buffer.Buffer) error {
	start := time.Now()
	watermark, seq, origin := b.Watermark(), b.SequenceNumber(), b.OriginID()
	n := int(b.NumberOfTuples())
	data := b.Bytes()
	in := w.op.input

	var late int
	var firstLate error
	for i := 0; i < n; i++ {
		row := in.schema.Row(data, i)
		var key uint64
		if in.keyed {
			key = in.key.Raw(row)
		}
		err := w.lift(ctx, in.ts.Raw(row), key, in.value.Raw(row))
		if err == nil {
			continue
		}
		if errors.Is(err, window.ErrLateRecord) && w.op.opts.latePolicy == Fail {
			lateRecords.WithLabelValues(w.op.id, string(Fail)).Inc()
		}
		if !errors.Is(err, window.ErrLateRecord) || w.op.opts.latePolicy == Fail {
			b.Release()
			return fmt.Errorf("worker %d failed to process buffer %d of origin %d: %w", w.id, seq, origin, err)
		}
		late++
		if firstLate == nil {
			firstLate = err
		}
	}
	b.Release()

	recordsProcessed.WithLabelValues(w.op.id, w.label).Add(float64(n))
	openSlices.WithLabelValues(w.op.id, w.label).Set(float64(w.store.Len()))
	bufferProcessingTime.WithLabelValues(w.op.id).Observe(float64(time.Since(start).Microseconds()))
	if late > 0 {
		lateRecords.WithLabelValues(w.op.id, string(Drop)).Add(float64(late))
		w.log.Warnw("Dropped late records", zap.Int("count", late), zap.Uint64("sequence", seq), zap.Error(firstLate))
	}

	current, advanced, err := w.op.processor.Update(origin, seq, watermark)
	if err != nil {
		return fmt.Errorf("worker %d failed to update the watermark: %w", w.id, err)
	}
	if advanced {
		w.op.requestFlush(current)
	}
	return nil
}

// lift folds one record into the store. When the ring is full, the slices in the way are
// published early and the record is retried once.
func (w *worker) lift(ctx context.Context, ts, key, raw uint64) error {
	err := w.store.Lift(ts, key, raw)
	if err == nil || !errors.Is(err, window.ErrStoreFull) {
		return err
	}
	var pe *window.ProcessingError
	if !errors.As(err, &pe) {
		return err
	}
	if err := w.spill(ctx, pe.Index); err != nil {
		return err
	}
	return w.store.Lift(ts, key, raw)
}

func (w *worker) spill(ctx context.Context, index uint64) error {
	dropped := w.store.makeRoom(index)
	defer w.store.release(dropped)
	slices := nonEmpty(dropped)
	if len(slices) == 0 {
		return nil
	}
	bufs, err := w.writer.Write(ctx, slices)
	if err != nil {
		return fmt.Errorf("worker %d failed to spill: %w", w.id, err)
	}
	spilledSlices.WithLabelValues(w.op.id).Add(float64(len(slices)))
	w.log.Debugw("Spilled slices", zap.Int("count", len(slices)), zap.Uint64("index", index))
	return w.op.merger.Publish(ctx, &trigger.Publication{Worker: w.id, Partial: true, Buffers: bufs})
}

// flush publishes the slices ending at or before watermark. The publication is sent even
// without slices so the merger learns the watermark of every worker.
func (w *worker) flush(ctx context.Context, watermark uint64) error {
	if watermark <= w.flushed {
		return nil
	}
	extracted := w.store.extract(watermark)
	defer w.store.release(extracted)
	slices := nonEmpty(extracted)
	bufs, err := w.writer.Write(ctx, slices)
	if err != nil {
		return fmt.Errorf("worker %d failed to flush at %d: %w", w.id, watermark, err)
	}
	w.flushed = watermark
	flushes.WithLabelValues(w.op.id, w.label).Inc()
	openSlices.WithLabelValues(w.op.id, w.label).Set(float64(w.store.Len()))
	w.log.Debugw("Flushed", zap.Uint64("watermark", watermark), zap.Int("slices", len(slices)))
	return w.op.merger.Publish(ctx, &trigger.Publication{Worker: w.id, Watermark: watermark, Buffers: bufs})
}

func nonEmpty(slices []*window.Slice) []*window.Slice {
	out := make([]*window.Slice, 0, len(slices))
	for _, s := range slices {
		if !s.Empty() {
			out = append(out, s)
		}
	}
	return out
}

func newWorker(op *Operator, id int, store sliceStore) *worker {
	return &worker{
		id:      id,
		label:   strconv.Itoa(id),
		op:      op,
		store:   store,
		writer:  serde.NewUnpooledWriter(op.transport, op.opts.transportChunk),
		target:  atomic.NewUint64(0),
		flushCh: make(chan struct{}, 1),
		log:     op.log.With("worker", id),
	}
}
