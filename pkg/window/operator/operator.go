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

// Package operator runs a windowed aggregation over input buffers. A pool of workers
// lifts records into worker owned slice stores without locks. When the watermark of the
// input advances, every worker is asked to flush: it publishes the slices the watermark
// made final to the merger, which emits the windows once all workers reached their end.
package operator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/watermark"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/slicer"
	"github.com/numaproj/numaslice/pkg/window/store/bucket"
	"github.com/numaproj/numaslice/pkg/window/store/partitioned"
	"github.com/numaproj/numaslice/pkg/window/trigger"
)

// transportDrainTimeout bounds the wait for transport buffers when the operator stops.
const transportDrainTimeout = 5 * time.Second

type inputFields struct {
	schema *tuple.Schema
	ts     tuple.Field
	key    tuple.Field
	value  tuple.Field
	keyed  bool
}

// Operator is a windowed aggregation. It can be run once.
type Operator struct {
	id        string
	spec      window.Spec
	fn        *aggregation.Function
	input     inputFields
	processor *watermark.Processor
	transport *buffer.Manager
	merger    *trigger.Merger
	workers   []*worker
	// failure is the error Run stopped with
	failure   *atomic.Error
	opts      *options
	log       *zap.SugaredLogger
}

// New returns an operator aggregating the value column of input records with fn over the
// windows of spec. Only buffers of the given origins are accepted; results are written
// into buffers of output and handed to emitter.
func New(ctx context.Context, id string, spec window.Spec, fn *aggregation.Function, input *tuple.Schema, origins []uint64, output *buffer.Manager, emitter trigger.Emitter, opts ...Option) (*Operator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := DefaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	fields, err := resolveFields(input, fn, o)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With("operator", id)
	ctx = logging.WithLogger(ctx, log)

	processor, err := watermark.NewProcessor(ctx, id, origins)
	if err != nil {
		return nil, err
	}
	transport, err := buffer.NewManager(ctx, id+"-transport", buffer.WithUnpooledLimit(o.transportLimit))
	if err != nil {
		return nil, err
	}
	assigner := slicer.New(spec)
	merger, err := trigger.NewMerger(ctx, id, assigner, fn, fields.keyed, o.workers, output, emitter,
		trigger.WithOutputTimeout(o.outputTimeout),
		trigger.WithOriginID(o.originID),
		trigger.WithCheckpointer(o.checkpointer),
		trigger.WithQueueSize(2*o.workers))
	if err != nil {
		return nil, err
	}
	op := &Operator{
		id:        id,
		spec:      spec,
		fn:        fn,
		input:     fields,
		processor: processor,
		transport: transport,
		merger:    merger,
		failure:   atomic.NewError(nil),
		opts:      o,
		log:       log,
	}
	for i := 0; i < o.workers; i++ {
		store, err := op.newStore(assigner)
		if err != nil {
			return nil, err
		}
		op.workers = append(op.workers, newWorker(op, i, store))
	}
	return op, nil
}

func resolveFields(input *tuple.Schema, fn *aggregation.Function, o *options) (inputFields, error) {
	f := inputFields{schema: input, keyed: o.keyField != ""}
	var ok bool
	if f.ts, ok = input.Field(o.timestampField); !ok {
		return f, fmt.Errorf("timestamp field %q not in the input schema", o.timestampField)
	}
	if f.value, ok = input.Field(o.valueField); !ok {
		return f, fmt.Errorf("value field %q not in the input schema", o.valueField)
	}
	if fn.Kind() != aggregation.Count && f.value.Type != fn.InputType() {
		return f, fmt.Errorf("value field %q is %s, the aggregation expects %s", o.valueField, f.value.Type, fn.InputType())
	}
	if f.keyed {
		if f.key, ok = input.Field(o.keyField); !ok {
			return f, fmt.Errorf("key field %q not in the input schema", o.keyField)
		}
	}
	return f, nil
}

func (op *Operator) newStore(assigner *slicer.Assigner) (sliceStore, error) {
	switch op.opts.strategy {
	case Bucketing:
		return bucketStore{bucket.New(assigner, op.fn, op.input.keyed)}, nil
	default:
		var opts []partitioned.Option
		if op.opts.slackSet {
			opts = append(opts, partitioned.WithSlack(op.opts.slack))
		}
		s, err := partitioned.New(assigner, op.fn, op.input.keyed, op.opts.capacity, opts...)
		if err != nil {
			return nil, err
		}
		return ringStore{s}, nil
	}
}

// ID returns the operator id.
func (op *Operator) ID() string {
	return op.id
}

// Watermark returns the watermark of the input.
func (op *Operator) Watermark() uint64 {
	return op.processor.Current()
}

// IsHealthy returns the error the operator failed with, if any.
func (op *Operator) IsHealthy(context.Context) error {
	return op.failure.Load()
}

func (op *Operator) requestFlush(watermark uint64) {
	for _, w := range op.workers {
		w.requestFlush(watermark)
	}
}

// Run consumes input buffers until in is closed and every result was emitted, or until
// the first error. Every buffer read from in is released. The operator drains its
// transport buffers before returning and reports a leak as an error.
func (op *Operator) Run(ctx context.Context, in <-chan *buffer.Buffer) (err error) {
	op.log.Infow("Starting operator", zap.String("window", op.spec.String()), zap.String("aggregation", op.fn.Kind().String()),
		zap.String("strategy", string(op.opts.strategy)), zap.Int("workers", len(op.workers)))
	defer func() {
		n := op.merger.Drain()
		drainCtx, cancel := context.WithTimeout(context.Background(), transportDrainTimeout)
		defer cancel()
		err = multierr.Combine(err, op.transport.Close(drainCtx))
		if err != nil {
			op.failure.Store(err)
		}
		op.log.Infow("Operator stopped", zap.Int("dropped", n), zap.Error(err))
	}()
	if err := op.merger.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore checkpoints: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return op.merger.Run(gCtx)
	})
	g.Go(func() error {
		defer op.merger.Close()
		wg, wCtx := errgroup.WithContext(gCtx)
		for _, w := range op.workers {
			w := w
			wg.Go(func() error {
				return w.run(wCtx, in)
			})
		}
		if err := wg.Wait(); err != nil {
			return err
		}
		return op.finalFlush(gCtx)
	})
	return g.Wait()
}

// finalFlush runs once every worker stopped, so it may use their stores.
func (op *Operator) finalFlush(ctx context.Context) error {
	target := op.processor.Current()
	if op.opts.flushOnClose {
		target = math.MaxUint64
	}
	op.log.Infow("Input closed, flushing", zap.Uint64("watermark", target))
	for _, w := range op.workers {
		if err := w.flush(ctx, target); err != nil {
			return err
		}
	}
	return nil
}
