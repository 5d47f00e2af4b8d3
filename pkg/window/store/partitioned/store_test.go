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

package partitioned

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/slicer"
)

func newStore(t *testing.T, capacity int, opts ...Option) *Store {
	t.Helper()
	a := slicer.New(window.Spec{Size: 10, Slide: 5})
	s, err := New(a, aggregation.MustNew(aggregation.Sum, tuple.Int64), false, capacity, opts...)
	require.NoError(t, err)
	return s
}

func TestNew_Invalid(t *testing.T) {
	a := slicer.New(window.Spec{Size: 10, Slide: 5})
	fn := aggregation.MustNew(aggregation.Sum, tuple.Int64)
	_, err := New(a, fn, false, 0)
	assert.Error(t, err)
	_, err = New(a, fn, false, 4, WithSlack(4))
	assert.Error(t, err)
}

func TestStore_Wraparound(t *testing.T) {
	s := newStore(t, 4, WithSlack(0))
	assert.True(t, s.Empty())
	first, err := s.Slice(0)
	require.NoError(t, err)
	for i := uint64(1); i < 4; i++ {
		_, err := s.Slice(i)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, s.Len())
	// lookups of an open index are idempotent
	again, err := s.Slice(0)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = s.Slice(4)
	assert.ErrorIs(t, err, window.ErrStoreFull)

	dropped, ok := s.DropFirstSlice()
	require.True(t, ok)
	assert.Same(t, first, dropped)
	assert.Equal(t, uint64(1), s.Floor())

	_, err = s.Slice(0)
	assert.ErrorIs(t, err, window.ErrLateRecord)
	var pe *window.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint64(5), pe.Floor)

	// the freed slot is reused for index 4
	fourth, err := s.Slice(4)
	require.NoError(t, err)
	assert.Same(t, first, fourth)
	start, end := fourth.Start(), fourth.End()
	assert.Equal(t, uint64(20), start)
	assert.Equal(t, uint64(25), end)
	assert.Equal(t, uint64(4), fourth.Index())
}

func TestStore_EmptyAndOccupiedAreDistinct(t *testing.T) {
	s := newStore(t, 2, WithSlack(0))
	_, err := s.Slice(3)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	_, ok := s.DropFirstSlice()
	require.True(t, ok)
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
	_, ok = s.FirstSlice()
	assert.False(t, ok)
	// the floor survives becoming empty
	assert.Equal(t, uint64(4), s.Floor())
	_, err = s.Slice(3)
	assert.ErrorIs(t, err, window.ErrLateRecord)
	sl, err := s.Slice(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sl.Index())
	assert.Equal(t, 2, s.Len())
}

func TestStore_Slack(t *testing.T) {
	s := newStore(t, 8)
	_, err := s.SliceByTs(100)
	require.NoError(t, err)
	// default slack is a quarter of the capacity
	assert.Equal(t, uint64(18), s.Floor())
	_, err = s.SliceByTs(90)
	assert.NoError(t, err)
	_, err = s.SliceByTs(89)
	var pe *window.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, window.ErrLateRecord)
	assert.Equal(t, uint64(89), pe.Ts)
	assert.Equal(t, uint64(90), pe.Floor)
}

func TestStore_ExtractSlicesUntilTs(t *testing.T) {
	s := newStore(t, 8, WithSlack(0))
	for ts := uint64(0); ts < 20; ts++ {
		require.NoError(t, s.Lift(ts, 0, 1))
	}
	assert.Equal(t, 4, s.Len())
	out := s.ExtractSlicesUntilTs(12)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(0), out[0].Start())
	assert.Equal(t, uint64(10), out[1].End())
	st, _ := out[1].Lookup(0)
	assert.Equal(t, int64(5), tuple.BitsInt64(out[1].Function().Lower(st)))
	assert.Equal(t, uint64(2), s.Floor())
	assert.Equal(t, 2, s.Len())

	out = s.ExtractSlicesUntilTs(40)
	assert.Len(t, out, 2)
	assert.True(t, s.Empty())
	// the floor moves to the slice containing the flush time
	assert.Equal(t, uint64(8), s.Floor())
	assert.ErrorIs(t, s.Lift(39, 0, 1), window.ErrLateRecord)
	assert.NoError(t, s.Lift(40, 0, 1))
	assert.Len(t, s.Slices(), 1)
}

func TestStore_DropSlicesBefore(t *testing.T) {
	s := newStore(t, 4, WithSlack(0))
	for _, ts := range []uint64{0, 5, 10, 15} {
		require.NoError(t, s.Lift(ts, 0, 1))
	}
	err := s.Lift(20, 0, 1)
	require.ErrorIs(t, err, window.ErrStoreFull)
	var pe *window.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint64(4), pe.Index)

	dropped := s.DropSlicesBefore(pe.Index - uint64(s.Capacity()) + 1)
	require.Len(t, dropped, 1)
	assert.Equal(t, uint64(0), dropped[0].Start())
	assert.Equal(t, uint64(1), s.Floor())
	require.NoError(t, s.Lift(20, 0, 1))
	assert.Equal(t, 4, s.Len())

	// on an empty ring only the floor moves
	assert.Len(t, s.DropSlicesBefore(100), 4)
	assert.True(t, s.Empty())
	assert.Equal(t, uint64(100), s.Floor())
	assert.ErrorIs(t, s.Lift(495, 0, 1), window.ErrLateRecord)
	assert.NoError(t, s.Lift(500, 0, 1))
}

func TestStore_Keyed(t *testing.T) {
	a := slicer.New(window.Spec{Size: 10, Slide: 3})
	fn := aggregation.MustNew(aggregation.Count, tuple.UInt64)
	s, err := New(a, fn, true, 16)
	require.NoError(t, err)
	for ts := uint64(20); ts < 30; ts++ {
		require.NoError(t, s.Lift(ts, ts%2, 0))
	}
	var total uint64
	for _, sl := range s.Slices() {
		sl.Range(func(_ uint64, st []byte) bool {
			total += fn.Lower(st)
			return true
		})
		assert.NotEmpty(t, a.WindowsForSlice(sl.Start(), sl.End()))
	}
	assert.Equal(t, uint64(10), total)
}
