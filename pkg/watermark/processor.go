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

// Package watermark tracks event time progress across origins. Every buffer carries the
// watermark of its origin and a per origin sequence number starting at 1. Buffers of one
// origin may be processed out of order by different workers, so an origin's watermark only
// advances over the gap free prefix of sequence numbers seen so far. The watermark of the
// processor is the minimum over all origins.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/shared/logging"
)

// FirstSequenceNumber is the sequence number of the first buffer of every origin.
const FirstSequenceNumber uint64 = 1

// ErrUnknownOrigin is returned for updates from an origin the processor was not built with.
var ErrUnknownOrigin = errors.New("unknown origin")

// originTimeline is the progress of one origin.
type originTimeline struct {
	nextSeq   uint64
	watermark uint64
	// pending holds watermarks of sequence numbers above a gap
	pending   map[uint64]uint64
}

func (o *originTimeline) update(seq, ts uint64) bool {
	if seq < o.nextSeq {
		return false
	}
	if _, ok := o.pending[seq]; ok {
		return false
	}
	o.pending[seq] = ts
	advanced := false
	for {
		w, ok := o.pending[o.nextSeq]
		if !ok {
			return advanced
		}
		delete(o.pending, o.nextSeq)
		o.nextSeq++
		if w > o.watermark {
			o.watermark = w
			advanced = true
		}
	}
}

// Processor combines the watermarks of a fixed set of origins. It is safe for concurrent
// use; Current never blocks.
type Processor struct {
	name    string
	lock    sync.Mutex
	origins map[uint64]*originTimeline
	current *atomic.Uint64
	log     *zap.SugaredLogger
}

// NewProcessor returns a processor for the given origins.
func NewProcessor(ctx context.Context, name string, origins []uint64) (*Processor, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("watermark processor %q needs at least one origin", name)
	}
	p := &Processor{
		name:    name,
		origins: make(map[uint64]*originTimeline, len(origins)),
		current: atomic.NewUint64(0),
		log:     logging.FromContext(ctx).With("watermarkProcessor", name),
	}
	for _, o := range origins {
		if _, ok := p.origins[o]; ok {
			return nil, fmt.Errorf("duplicate origin %d", o)
		}
		p.origins[o] = &originTimeline{nextSeq: FirstSequenceNumber, pending: make(map[uint64]uint64)}
	}
	return p, nil
}

// Update records that the buffer with sequence number seq of origin carried watermark ts.
// It returns the watermark of the processor and whether this update advanced it.
// Duplicate sequence numbers are ignored.
func (p *Processor) Update(origin, seq, ts uint64) (uint64, bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	o, ok := p.origins[origin]
	if !ok {
		return p.current.Load(), false, fmt.Errorf("%w %d", ErrUnknownOrigin, origin)
	}
	if !o.update(seq, ts) {
		pendingSequences.WithLabelValues(p.name, strconv.FormatUint(origin, 10)).Set(float64(len(o.pending)))
		return p.current.Load(), false, nil
	}
	pendingSequences.WithLabelValues(p.name, strconv.FormatUint(origin, 10)).Set(float64(len(o.pending)))

	first := true
	var w uint64
	for _, ot := range p.origins {
		if first || ot.watermark < w {
			w = ot.watermark
			first = false
		}
	}
	if w <= p.current.Load() {
		return w, false, nil
	}
	p.current.Store(w)
	currentWatermark.WithLabelValues(p.name).Set(float64(w))
	p.log.Debugw("Watermark advanced", zap.Uint64("watermark", w), zap.Uint64("origin", origin), zap.Uint64("sequence", seq))
	return w, true, nil
}

// Current returns the watermark of the processor.
func (p *Processor) Current() uint64 {
	return p.current.Load()
}

// OriginWatermark returns the watermark of a single origin.
func (p *Processor) OriginWatermark(origin uint64) (uint64, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	o, ok := p.origins[origin]
	if !ok {
		return 0, false
	}
	return o.watermark, true
}

// Pending returns the number of sequence numbers of origin waiting for a gap to close.
func (p *Processor) Pending(origin uint64) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	if o, ok := p.origins[origin]; ok {
		return len(o.pending)
	}
	return 0
}
