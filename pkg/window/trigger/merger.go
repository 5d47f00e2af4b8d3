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

// Package trigger turns partial slice state into window results. Workers own their slice
// stores; when the watermark lets them, they publish the slices that became final. The
// Merger is the only writer of the global state: it folds publications into global slices
// and, once every worker has published a watermark past the end of a window, combines the
// window's slices, lowers the result into an output buffer and evicts what is no longer
// needed.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/serde"
	"github.com/numaproj/numaslice/pkg/window/slicer"
	"github.com/numaproj/numaslice/pkg/window/store/bucket"
)

var (
	// ErrOutputBackpressure is returned when no output buffer was available within the
	// configured timeout. The window result is not dropped; the operator fails instead.
	ErrOutputBackpressure = errors.New("output buffer backpressure")
	// ErrLateSlice is returned when a slice is published after one of its windows was emitted.
	ErrLateSlice = errors.New("slice published after its window was emitted")
)

// Emitter receives window results. It owns the buffer it is given and must release it.
type Emitter interface {
	Emit(ctx context.Context, b *buffer.Buffer) error
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(ctx context.Context, b *buffer.Buffer) error

func (f EmitterFunc) Emit(ctx context.Context, b *buffer.Buffer) error {
	return f(ctx, b)
}

// Publication is what a worker hands to the merger: encoded slices and, unless Partial,
// the watermark up to which the worker's state is final.
type Publication struct {
	Worker    int
	Watermark uint64
	// Partial publications carry slices spilled early and do not move the watermark
	Partial   bool
	Buffers   []*buffer.Buffer
}

func (p *Publication) release() {
	for _, b := range p.Buffers {
		b.Release()
	}
	p.Buffers = nil
}

// Merger is the single writer of the global slice state.
type Merger struct {
	name     string
	assigner *slicer.Assigner
	fn       *aggregation.Function
	keyed    bool
	global   *bucket.Store
	scratch  *window.Slice

	published    []uint64
	reported     []bool
	// complete is the minimum watermark published by every worker
	complete     uint64
	// emittedUntil is the end of the last emitted window boundary
	emittedUntil uint64
	// savedUntil is the emitted watermark last written to the checkpoint
	savedUntil   uint64

	output  *buffer.Manager
	schema  *tuple.Schema
	fields  []tuple.Field
	seq     uint64
	emitter Emitter

	opts *options
	in   chan *Publication
	log  *zap.SugaredLogger
}

// NewMerger returns a merger expecting publications from the given number of workers.
func NewMerger(ctx context.Context, name string, assigner *slicer.Assigner, fn *aggregation.Function, keyed bool, workers int, output *buffer.Manager, emitter Emitter, opts ...Option) (*Merger, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("invalid number of workers %d", workers)
	}
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	schema := tuple.ResultSchema(fn.OutputType())
	return &Merger{
		name:      name,
		assigner:  assigner,
		fn:        fn,
		keyed:     keyed,
		global:    bucket.New(assigner, fn, keyed),
		scratch:   window.NewSlice(0, 1, 0, fn, keyed),
		published: make([]uint64, workers),
		reported:  make([]bool, workers),
		output:    output,
		schema:    schema,
		fields:    schema.Fields(),
		emitter:   emitter,
		opts:      o,
		in:        make(chan *Publication, o.queueSize),
		log:       logging.FromContext(ctx).With("merger", name),
	}, nil
}

// Publish queues a publication. The merger owns its buffers from then on; if ctx is done
// first, they are released here.
func (m *Merger) Publish(ctx context.Context, p *Publication) error {
	if err := ctx.Err(); err != nil {
		p.release()
		return err
	}
	select {
	case m.in <- p:
		return nil
	case <-ctx.Done():
		p.release()
		return ctx.Err()
	}
}

// Close tells the merger no more publications will come. Run returns once the queue is empty.
func (m *Merger) Close() {
	close(m.in)
}

// Drain releases the buffers of publications still queued. Call it once Run returned and
// every publisher stopped.
func (m *Merger) Drain() int {
	n := 0
	for {
		select {
		case p, ok := <-m.in:
			if !ok {
				return n
			}
			p.release()
			n++
		default:
			return n
		}
	}
}

// Restore loads the emitted watermark and the checkpointed slices into the global state.
// Slices whose windows were all emitted before the checkpoint are dropped.
func (m *Merger) Restore(ctx context.Context) error {
	cp := m.opts.checkpointer
	if cp == nil {
		return nil
	}
	emitted, ok, err := cp.RestoreProgress(ctx)
	if err != nil {
		return err
	}
	if ok {
		m.emittedUntil = emitted
		m.complete = emitted
		m.savedUntil = emitted
	}
	slices, err := cp.Restore(ctx)
	if err != nil {
		return err
	}
	var stale []window.Info
	for _, s := range slices {
		windows := m.assigner.WindowsForSlice(s.Start(), s.End())
		if len(windows) == 0 || windows[len(windows)-1].End <= m.emittedUntil {
			stale = append(stale, window.Info{Start: s.Start(), End: s.End()})
			continue
		}
		m.global.Bucket(s.Start(), s.End()).Combine(s)
	}
	if err := cp.Remove(ctx, stale); err != nil {
		return fmt.Errorf("failed to remove emitted checkpoints: %w", err)
	}
	globalSlices.WithLabelValues(m.name).Set(float64(m.global.Len()))
	m.log.Infow("Restored merger state", zap.Uint64("emittedUntil", m.emittedUntil), zap.Int("slices", m.global.Len()), zap.Int("dropped", len(stale)))
	return nil
}

// Run merges publications until Close was called and the queue is drained, or ctx is done.
func (m *Merger) Run(ctx context.Context) error {
	m.log.Info("Merger started")
	defer m.log.Info("Merger stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-m.in:
			if !ok {
				return nil
			}
			if err := m.merge(ctx, p); err != nil {
				return err
			}
		}
	}
}

// Complete returns the watermark every worker has published.
func (m *Merger) Complete() uint64 {
	return m.complete
}

// Len returns the number of global slices not yet evicted.
func (m *Merger) Len() int {
	return m.global.Len()
}

func (m *Merger) merge(ctx context.Context, p *Publication) error {
	start := time.Now()
	if p.Worker < 0 || p.Worker >= len(m.published) {
		p.release()
		return fmt.Errorf("publication from unknown worker %d", p.Worker)
	}
	slices, err := serde.ReadBuffers(p.Buffers, m.fn)
	p.release()
	if err != nil {
		return fmt.Errorf("failed to decode the publication of worker %d: %w", p.Worker, err)
	}

	touched := make([]*window.Slice, 0, len(slices))
	for _, s := range slices {
		windows := m.assigner.WindowsForSlice(s.Start(), s.End())
		if len(windows) == 0 {
			// the slice falls between windows
			continue
		}
		if m.reportedAll() && windows[0].End <= m.emittedUntil {
			return fmt.Errorf("%w: %s of worker %d, emitted until %d", ErrLateSlice, s, p.Worker, m.emittedUntil)
		}
		g := m.global.Bucket(s.Start(), s.End())
		g.Combine(s)
		touched = append(touched, g)
	}
	if !p.Partial {
		m.published[p.Worker] = max(m.published[p.Worker], p.Watermark)
		m.reported[p.Worker] = true
	}

	evicted, err := m.trigger(ctx)
	if err != nil {
		return err
	}
	if err := m.checkpoint(ctx, touched, evicted); err != nil {
		return err
	}
	publicationsMerged.WithLabelValues(m.name).Inc()
	mergeProcessingTime.WithLabelValues(m.name).Observe(float64(time.Since(start).Microseconds()))
	return nil
}

func (m *Merger) reportedAll() bool {
	for _, r := range m.reported {
		if !r {
			return false
		}
	}
	return true
}

// trigger emits every window ending at or before the complete watermark and evicts the
// slices whose last window was emitted.
func (m *Merger) trigger(ctx context.Context) ([]window.Info, error) {
	if !m.reportedAll() {
		return nil, nil
	}
	complete := m.published[0]
	for _, w := range m.published[1:] {
		complete = min(complete, w)
	}
	if complete <= m.complete {
		return nil, nil
	}
	m.complete = complete
	completeWatermark.WithLabelValues(m.name).Set(float64(complete))

	for _, w := range m.closeable(complete) {
		if err := m.emitWindow(ctx, w); err != nil {
			return nil, err
		}
	}
	m.emittedUntil = complete

	// a slice starting before the first window start that is still open has no open window
	var bound uint64
	spec := m.assigner.Spec()
	if complete >= spec.Size {
		if n := (complete-spec.Size)/spec.Slide + 1; n > math.MaxUint64/spec.Slide {
			bound = math.MaxUint64
		} else {
			bound = n * spec.Slide
		}
	}
	removed := m.global.ExtractBucketsStartingBefore(bound)
	evicted := make([]window.Info, 0, len(removed))
	for _, s := range removed {
		evicted = append(evicted, window.Info{Start: s.Start(), End: s.End()})
	}
	m.global.Recycle(removed...)
	globalSlices.WithLabelValues(m.name).Set(float64(m.global.Len()))
	m.log.Debugw("Triggered windows", zap.Uint64("watermark", complete), zap.Int("evicted", len(evicted)))
	return evicted, nil
}

// closeable returns, ordered by end, the windows with data ending in (emittedUntil, watermark].
func (m *Merger) closeable(watermark uint64) []window.Info {
	seen := make(map[window.Info]struct{})
	var windows []window.Info
	for _, s := range m.global.Buckets() {
		for _, w := range m.assigner.WindowsForSlice(s.Start(), s.End()) {
			if w.End <= m.emittedUntil || w.End > watermark {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			windows = append(windows, w)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].End != windows[j].End {
			return windows[i].End < windows[j].End
		}
		return windows[i].Start < windows[j].Start
	})
	return windows
}

func (m *Merger) emitWindow(ctx context.Context, w window.Info) error {
	m.scratch.Reset(w.Start, w.End, 0)
	for _, s := range m.global.BucketsWithin(w.Start, w.End) {
		m.scratch.Combine(s)
	}
	n := m.scratch.Len()
	if n == 0 {
		return nil
	}
	size := n * m.schema.RowSize()
	b, err := m.outputBuffer(ctx, size)
	if err != nil {
		return fmt.Errorf("failed to emit window %s: %w", w, err)
	}
	data := b.Bytes()
	i := 0
	m.scratch.Range(func(key uint64, state []byte) bool {
		row := m.schema.Row(data, i)
		m.fields[0].SetRaw(row, w.Start)
		m.fields[1].SetRaw(row, w.End)
		m.fields[2].SetRaw(row, key)
		m.fields[3].SetRaw(row, m.fn.Lower(state))
		i++
		return true
	})
	m.seq++
	b.SetSize(uint64(size))
	b.SetNumberOfTuples(uint64(n))
	b.SetWatermark(w.End)
	b.SetSequenceNumber(m.seq)
	b.SetOriginID(m.opts.originID)
	windowsEmitted.WithLabelValues(m.name).Inc()
	return m.emitter.Emit(ctx, b)
}

func (m *Merger) outputBuffer(ctx context.Context, size int) (*buffer.Buffer, error) {
	if size > m.output.BufferSize() {
		return m.output.GetUnpooledBuffer(size)
	}
	if m.opts.outputTimeout <= 0 {
		return m.output.GetBufferBlocking(ctx)
	}
	b, ok := m.output.GetBufferTimeout(m.opts.outputTimeout)
	if !ok {
		outputBackpressure.WithLabelValues(m.name).Inc()
		return nil, fmt.Errorf("%w: waited %v", ErrOutputBackpressure, m.opts.outputTimeout)
	}
	return b, nil
}

func (m *Merger) checkpoint(ctx context.Context, touched []*window.Slice, evicted []window.Info) error {
	cp := m.opts.checkpointer
	if cp == nil {
		return nil
	}
	live := touched[:0]
	for _, s := range touched {
		if g, ok := m.global.Lookup(s.Start(), s.End()); ok && g == s {
			live = append(live, s)
		}
	}
	if err := cp.Save(ctx, live); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	if m.emittedUntil > m.savedUntil {
		if err := cp.SaveProgress(ctx, m.emittedUntil); err != nil {
			return err
		}
		m.savedUntil = m.emittedUntil
	}
	if err := cp.Remove(ctx, evicted); err != nil {
		return fmt.Errorf("failed to remove checkpoints: %w", err)
	}
	return nil
}
