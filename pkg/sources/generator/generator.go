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

// Package generator implements a synthetic source. It writes rows of {ts, key, value}
// into pooled buffers and stamps every buffer with the watermark, sequence number and
// origin id the window operator expects.
package generator

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/watermark"
)

// Column names of generated rows.
const (
	ColTimestamp = "ts"
	ColKey       = "key"
	ColValue     = "value"
)

type Generator struct {
	manager *buffer.Manager
	schema  *tuple.Schema
	fields  []tuple.Field
	opts    *options
	log     *zap.SugaredLogger
}

// New returns a generator taking buffers from manager.
func New(ctx context.Context, manager *buffer.Manager, opts ...Option) (*Generator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	schema, err := tuple.NewSchema(
		tuple.Column{Name: ColTimestamp, Type: tuple.UInt64},
		tuple.Column{Name: ColKey, Type: tuple.UInt64},
		tuple.Column{Name: ColValue, Type: o.valueType},
	)
	if err != nil {
		return nil, err
	}
	if size := manager.BufferSize(); o.recordsPerBuffer*schema.RowSize() > size {
		return nil, fmt.Errorf("%d records of %d bytes do not fit a buffer of %d bytes", o.recordsPerBuffer, schema.RowSize(), size)
	}
	return &Generator{
		manager: manager,
		schema:  schema,
		fields:  schema.Fields(),
		opts:    o,
		log:     logging.FromContext(ctx).With("source", "generator"),
	}, nil
}

// Schema returns the schema of generated rows.
func (g *Generator) Schema() *tuple.Schema {
	return g.schema
}

// Origins returns the ids of the origins buffers are generated for.
func (g *Generator) Origins() []uint64 {
	out := make([]uint64, g.opts.origins)
	for i := range out {
		out[i] = uint64(i)
	}
	return out
}

func (g *Generator) value(i int) uint64 {
	v := g.opts.value
	if v == 0 {
		v = int64(i)
	}
	switch g.opts.valueType {
	case tuple.Float64:
		return tuple.Float64Bits(float64(v))
	case tuple.UInt64:
		return uint64(v)
	default:
		return tuple.Int64Bits(v)
	}
}

// Run writes every buffer to out, origins taking turns, and closes out. It blocks while
// the pool is exhausted, which is how a slow consumer slows the generator down.
func (g *Generator) Run(ctx context.Context, out chan<- *buffer.Buffer) error {
	defer close(out)
	o := g.opts
	next := make([]int, o.origins)
	seqs := make([]uint64, o.origins)
	for i := range seqs {
		seqs[i] = watermark.FirstSequenceNumber
	}
	for remaining := true; remaining; {
		remaining = false
		for origin := 0; origin < o.origins; origin++ {
			if next[origin] >= o.records {
				continue
			}
			remaining = true
			b, err := g.manager.GetBufferBlocking(ctx)
			if err != nil {
				return fmt.Errorf("failed to get a buffer: %w", err)
			}
			n := min(o.recordsPerBuffer, o.records-next[origin])
			var last uint64
			for j := 0; j < n; j++ {
				i := next[origin] + j
				row := g.schema.Row(b.Bytes(), j)
				last = o.startTs + uint64(i)*o.step
				g.fields[0].SetRaw(row, last)
				g.fields[1].SetRaw(row, uint64(i%o.keys))
				g.fields[2].SetRaw(row, g.value(i))
			}
			b.SetNumberOfTuples(uint64(n))
			b.SetSize(uint64(n * g.schema.RowSize()))
			b.SetWatermark(last - min(last, o.disorder))
			b.SetSequenceNumber(seqs[origin])
			b.SetOriginID(uint64(origin))
			next[origin] += n
			seqs[origin]++

			select {
			case out <- b:
			case <-ctx.Done():
				b.Release()
				return ctx.Err()
			}
			label := strconv.Itoa(origin)
			generatedRecords.WithLabelValues(label).Add(float64(n))
			generatedBuffers.WithLabelValues(label).Inc()
		}
	}
	g.log.Infow("Generator done", zap.Int("records", o.records), zap.Int("origins", o.origins))
	return nil
}
