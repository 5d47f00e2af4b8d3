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

package aggregation

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/tuple"
)

func fold(f *Function, values []uint64) []byte {
	s := f.NewState()
	for _, v := range values {
		f.Lift(s, v)
	}
	return s
}

func TestFunction_Lower(t *testing.T) {
	ints := []uint64{tuple.Int64Bits(4), tuple.Int64Bits(-2), tuple.Int64Bits(7), tuple.Int64Bits(0)}
	tests := []struct {
		kind Kind
		want any
	}{
		{Sum, int64(9)},
		{Count, uint64(4)},
		{Min, int64(-2)},
		{Max, int64(7)},
		{Avg, 2.25},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := MustNew(tt.kind, tuple.Int64)
			got := tuple.Value(f.OutputType(), f.Lower(fold(f, ints)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFunction_AvgDoesNotTruncate(t *testing.T) {
	f := MustNew(Avg, tuple.UInt64)
	assert.Equal(t, tuple.Float64, f.OutputType())
	s := fold(f, []uint64{1, 2})
	assert.Equal(t, 1.5, tuple.BitsFloat64(f.Lower(s)))
	assert.Equal(t, 0.0, tuple.BitsFloat64(f.Lower(f.NewState())))
	assert.Equal(t, 16, f.StateSize())
}

func TestFunction_MinMaxIdentity(t *testing.T) {
	for _, dt := range []tuple.DataType{tuple.Int64, tuple.UInt64, tuple.Float64} {
		min := MustNew(Min, dt)
		max := MustNew(Max, dt)
		var one uint64 = 1
		if dt == tuple.Float64 {
			one = tuple.Float64Bits(1)
		}
		// combining with an untouched state must not change the result
		s := fold(min, []uint64{one})
		min.Combine(s, min.NewState())
		assert.Equal(t, one, min.Lower(s), dt.String())
		s = fold(max, []uint64{one})
		max.Combine(s, max.NewState())
		assert.Equal(t, one, max.Lower(s), dt.String())
	}
	assert.Equal(t, math.Inf(1), tuple.BitsFloat64(MustNew(Min, tuple.Float64).Lower(MustNew(Min, tuple.Float64).NewState())))
}

// Lift-folding two halves and combining them gives the same bits as folding everything.
func TestFunction_CombineAssociative(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, dt := range []tuple.DataType{tuple.Int64, tuple.UInt64, tuple.Float64} {
		values := make([]uint64, 200)
		for i := range values {
			switch dt {
			case tuple.Float64:
				// integral floats keep sums exact in any order
				values[i] = tuple.Float64Bits(float64(r.Intn(1000) - 500))
			case tuple.Int64:
				values[i] = tuple.Int64Bits(int64(r.Intn(1000) - 500))
			default:
				values[i] = uint64(r.Intn(1000))
			}
		}
		for _, kind := range []Kind{Sum, Count, Min, Max} {
			f := MustNew(kind, dt)
			whole := f.Lower(fold(f, values))
			for _, cut := range []int{0, 1, 73, 199, 200} {
				left := fold(f, values[:cut])
				right := fold(f, values[cut:])
				f.Combine(left, right)
				assert.Equal(t, whole, f.Lower(left), "%s %s cut %d", kind, dt, cut)

				right = fold(f, values[cut:])
				f.Combine(right, fold(f, values[:cut]))
				assert.Equal(t, whole, f.Lower(right), "%s %s cut %d reversed", kind, dt, cut)
			}
		}
	}
}

func TestFunction_Reset(t *testing.T) {
	f := MustNew(Sum, tuple.Int64)
	s := fold(f, []uint64{5, 6})
	f.Reset(s)
	assert.Equal(t, int64(0), tuple.BitsInt64(f.Lower(s)))
}

func TestLayout(t *testing.T) {
	sum := MustNew(Sum, tuple.Int64).Layout()
	avg := MustNew(Avg, tuple.Int64).Layout()
	assert.Equal(t, LayoutVersion, sum.Version)
	assert.Equal(t, 8, sum.Size)
	assert.Equal(t, 0, avg.CountOffset)
	assert.Equal(t, 8, avg.ValueOffset)
	assert.NoError(t, sum.Compatible(MustNew(Sum, tuple.Int64).Layout()))
	assert.Error(t, sum.Compatible(MustNew(Sum, tuple.Float64).Layout()))
	assert.Error(t, sum.Compatible(avg))
	assert.Panics(t, func() { MustNew(Sum, tuple.Int64).Combine(make([]byte, 4), make([]byte, 8)) })
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("AVG")
	require.NoError(t, err)
	assert.Equal(t, Avg, k)
	_, err = ParseKind("median")
	assert.Error(t, err)
	_, err = New(Kind(42), tuple.Int64)
	assert.Error(t, err)
}

func TestFunction_StateFollowsLayout(t *testing.T) {
	values := []uint64{tuple.Int64Bits(4), tuple.Int64Bits(-2), tuple.Int64Bits(7)}
	tests := []struct {
		kind  Kind
		count uint64
		value int64
	}{
		{kind: Sum, value: 9},
		{kind: Count, count: 3},
		{kind: Min, value: -2},
		{kind: Max, value: 7},
		{kind: Avg, count: 3, value: 9},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := MustNew(tt.kind, tuple.Int64)
			l := f.Layout()
			state := fold(f, values)
			require.Len(t, state, l.Size)
			if l.CountOffset >= 0 {
				assert.Equal(t, tt.count, binary.LittleEndian.Uint64(state[l.CountOffset:]))
			}
			if l.ValueOffset >= 0 {
				assert.Equal(t, tt.value, int64(binary.LittleEndian.Uint64(state[l.ValueOffset:])))
			}
		})
	}
}
