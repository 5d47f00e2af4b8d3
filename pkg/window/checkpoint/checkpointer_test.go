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

package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/checkpoint"
	"github.com/numaproj/numaslice/pkg/window/checkpoint/inmem"
)

func TestKey(t *testing.T) {
	k := checkpoint.Key("op-1", 100, 105)
	assert.Equal(t, "op-1/100-105", k)
	id, w, err := checkpoint.ParseKey(k)
	require.NoError(t, err)
	assert.Equal(t, "op-1", id)
	assert.Equal(t, window.Info{Start: 100, End: 105}, w)

	for _, bad := range []string{"op", "op/5", "op/a-5", "op/5-b"} {
		_, _, err := checkpoint.ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckpointer_SaveRestore(t *testing.T) {
	ctx := context.Background()
	store, err := inmem.NewKVInMemKVStore(ctx, "checkpoints")
	require.NoError(t, err)
	fn := aggregation.MustNew(aggregation.Sum, tuple.Int64)

	_, err = checkpoint.New(ctx, store, "a/b", fn)
	assert.Error(t, err)

	cp, err := checkpoint.New(ctx, store, "op", fn)
	require.NoError(t, err)
	other, err := checkpoint.New(ctx, store, "other", fn)
	require.NoError(t, err)

	var slices []*window.Slice
	// starts chosen so that string order differs from numeric order
	for _, start := range []uint64{100, 5, 20} {
		s := window.NewSlice(start, start+5, start/5, fn, true)
		s.Lift(1, start)
		s.Lift(2, 1)
		slices = append(slices, s)
	}
	require.NoError(t, cp.Save(ctx, slices))
	require.NoError(t, other.Save(ctx, slices[:1]))

	restored, err := cp.Restore(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 3)
	assert.Equal(t, []uint64{5, 20, 100}, []uint64{restored[0].Start(), restored[1].Start(), restored[2].Start()})
	st, ok := restored[2].Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), fn.Lower(st))

	require.NoError(t, cp.Remove(ctx, []window.Info{{Start: 5, End: 10}, {Start: 7, End: 9}}))
	restored, err = cp.Restore(ctx)
	require.NoError(t, err)
	assert.Len(t, restored, 2)

	require.NoError(t, cp.Clear(ctx))
	restored, err = cp.Restore(ctx)
	require.NoError(t, err)
	assert.Empty(t, restored)
	restored, err = other.Restore(ctx)
	require.NoError(t, err)
	assert.Len(t, restored, 1)

	// state written with another layout is refused
	avg, err := checkpoint.New(ctx, store, "other", aggregation.MustNew(aggregation.Avg, tuple.Int64))
	require.NoError(t, err)
	_, err = avg.Restore(ctx)
	assert.Error(t, err)
}

func TestCheckpointer_Progress(t *testing.T) {
	ctx := context.Background()
	store, err := inmem.NewKVInMemKVStore(ctx, "checkpoints")
	require.NoError(t, err)
	fn := aggregation.MustNew(aggregation.Sum, tuple.Int64)
	cp, err := checkpoint.New(ctx, store, "op", fn)
	require.NoError(t, err)

	_, ok, err := cp.RestoreProgress(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cp.SaveProgress(ctx, 40))
	require.NoError(t, cp.SaveProgress(ctx, 45))
	require.NoError(t, cp.Save(ctx, []*window.Slice{window.NewSlice(45, 50, 9, fn, false)}))
	w, ok, err := cp.RestoreProgress(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(45), w)

	// the progress key is not mistaken for a slice
	restored, err := cp.Restore(ctx)
	require.NoError(t, err)
	assert.Len(t, restored, 1)

	require.NoError(t, cp.Clear(ctx))
	_, ok, err = cp.RestoreProgress(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, store.PutKV(ctx, "op/emitted", []byte("soon")))
	_, _, err = cp.RestoreProgress(ctx)
	assert.Error(t, err)
}
