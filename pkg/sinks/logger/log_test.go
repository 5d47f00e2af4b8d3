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

package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/tuple"
)

func resultBuffer(t *testing.T, m *buffer.Manager, valueType tuple.DataType, rows ...[4]uint64) *buffer.Buffer {
	t.Helper()
	schema := tuple.ResultSchema(valueType)
	b, ok := m.GetBufferNoBlocking()
	require.True(t, ok)
	fields := schema.Fields()
	for i, r := range rows {
		row := schema.Row(b.Bytes(), i)
		for j := range fields {
			fields[j].SetRaw(row, r[j])
		}
	}
	b.SetNumberOfTuples(uint64(len(rows)))
	b.SetSequenceNumber(1)
	return b
}

func TestToLog_Emit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m, err := buffer.NewManager(context.Background(), t.Name(), buffer.WithPool(128, 2))
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, m.Close(ctx))
	}()

	s, err := NewToLog("sum", tuple.Int64, WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)
	assert.Equal(t, "sum", s.GetName())

	require.NoError(t, s.Emit(context.Background(), resultBuffer(t, m, tuple.Int64,
		[4]uint64{0, 10, 1, tuple.Int64Bits(10)},
		[4]uint64{0, 10, 2, tuple.Int64Bits(-3)},
	)))
	require.NoError(t, s.Emit(context.Background(), resultBuffer(t, m, tuple.Int64, [4]uint64{5, 15, 1, tuple.Int64Bits(7)})))

	entries := logs.FilterMessage("Window result").All()
	require.Len(t, entries, 3)
	assert.Equal(t, `{"windowStart":0,"windowEnd":10,"key":2,"value":-3}`, entries[1].ContextMap()["payload"])
	assert.Equal(t, "sum", entries[0].ContextMap()["sink"])

	summary, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Windows)
	assert.Equal(t, 3, summary.Rows)
	assert.GreaterOrEqual(t, summary.IntervalP99, summary.IntervalMedian)
}

func TestToLog_DecodeFloat(t *testing.T) {
	m, err := buffer.NewManager(context.Background(), t.Name(), buffer.WithPool(64, 1))
	require.NoError(t, err)
	s, err := NewToLog("avg", tuple.Float64, WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	b := resultBuffer(t, m, tuple.Float64, [4]uint64{0, 10, 0, tuple.Float64Bits(2.5)})
	assert.Equal(t, []Result{{WindowStart: 0, WindowEnd: 10, Key: 0, Value: 2.5}}, s.Decode(b))
	b.Release()
	summary, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.NoError(t, m.Close(context.Background()))
}

func TestToLog_SummaryIntervals(t *testing.T) {
	fifty := make([]float64, 50)
	for i := range fifty {
		fifty[i] = float64(i + 1)
	}
	tests := []struct {
		name      string
		intervals []float64
		median    float64
		p99       float64
	}{
		{name: "single", intervals: []float64{1.5}, median: 1.5, p99: 1.5},
		{name: "two", intervals: []float64{3, 1}, median: 2, p99: 2},
		{name: "fifty", intervals: fifty, median: 25.5, p99: 49.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewToLog("sum", tuple.Int64, WithLogger(zap.NewNop().Sugar()))
			require.NoError(t, err)
			s.windows = len(tt.intervals) + 1
			s.intervals = tt.intervals
			summary, err := s.Summary()
			require.NoError(t, err)
			assert.Equal(t, tt.median, summary.IntervalMedian)
			assert.Equal(t, tt.p99, summary.IntervalP99)
		})
	}
}
