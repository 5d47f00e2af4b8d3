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

// Package logger implements an emitter printing window results to the log as JSON.
package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/tuple"
)

// Result is one row of a window result buffer.
type Result struct {
	WindowStart uint64 `json:"windowStart"`
	WindowEnd   uint64 `json:"windowEnd"`
	Key         uint64 `json:"key"`
	Value       any    `json:"value"`
}

// Summary describes what a ToLog emitted so far. Intervals are the milliseconds between
// two consecutive result buffers.
type Summary struct {
	Windows        int     `json:"windows"`
	Rows           int     `json:"rows"`
	IntervalMedian float64 `json:"intervalMedianMs"`
	IntervalP99    float64 `json:"intervalP99Ms"`
}

// ToLog prints window results to a log sink.
type ToLog struct {
	name      string
	schema    *tuple.Schema
	fields    []tuple.Field
	valueType tuple.DataType
	logger    *zap.SugaredLogger

	lock      sync.Mutex
	windows   int
	rows      int
	last      time.Time
	intervals stats.Float64Data
}

type Option func(*ToLog) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToLog) error {
		t.logger = log
		return nil
	}
}

// NewToLog returns a ToLog decoding result rows whose value is of valueType.
func NewToLog(name string, valueType tuple.DataType, opts ...Option) (*ToLog, error) {
	toLog := new(ToLog)
	toLog.name = name
	toLog.valueType = valueType
	toLog.schema = tuple.ResultSchema(valueType)
	toLog.fields = toLog.schema.Fields()
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}
	toLog.logger = toLog.logger.With("sink", name)
	return toLog, nil
}

// GetName returns the name.
func (t *ToLog) GetName() string {
	return t.name
}

// Decode returns the rows of a result buffer.
func (t *ToLog) Decode(b *buffer.Buffer) []Result {
	n := int(b.NumberOfTuples())
	out := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		row := t.schema.Row(b.Bytes(), i)
		out = append(out, Result{
			WindowStart: t.fields[0].Raw(row),
			WindowEnd:   t.fields[1].Raw(row),
			Key:         t.fields[2].Raw(row),
			Value:       tuple.Value(t.valueType, t.fields[3].Raw(row)),
		})
	}
	return out
}

// Emit writes every row of b to the log and releases b.
func (t *ToLog) Emit(_ context.Context, b *buffer.Buffer) error {
	defer b.Release()
	results := t.Decode(b)
	for _, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal window result: %w", err)
		}
		t.logger.Infow("Window result", zap.String("payload", string(payload)), zap.Uint64("sequence", b.SequenceNumber()))
	}
	logSinkWriteCount.WithLabelValues(t.name).Add(float64(len(results)))

	t.lock.Lock()
	defer t.lock.Unlock()
	now := time.Now()
	if !t.last.IsZero() {
		t.intervals = append(t.intervals, float64(now.Sub(t.last).Microseconds())/1000)
	}
	t.last = now
	t.windows++
	t.rows += len(results)
	return nil
}

// Summary returns the emission summary.
func (t *ToLog) Summary() (Summary, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	s := Summary{Windows: t.windows, Rows: t.rows}
	if len(t.intervals) == 0 {
		return s, nil
	}
	var err error
	if s.IntervalMedian, err = stats.Median(t.intervals); err != nil {
		return s, err
	}
	// Percentile has no rank below 1/len, which a single interval never reaches
	if len(t.intervals) == 1 {
		s.IntervalP99 = t.intervals[0]
		return s, nil
	}
	if s.IntervalP99, err = stats.Percentile(t.intervals, 99); err != nil {
		return s, err
	}
	return s, nil
}

func (t *ToLog) Close() error {
	return t.logger.Sync()
}
