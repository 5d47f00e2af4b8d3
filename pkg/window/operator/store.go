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
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/store/bucket"
	"github.com/numaproj/numaslice/pkg/window/store/partitioned"
)

// sliceStore is the part of a slice store a worker needs.
type sliceStore interface {
	Lift(ts, key, raw uint64) error
	// extract removes the slices ending at or before ts
	extract(ts uint64) []*window.Slice
	// makeRoom drops the slices that keep index out of the store
	makeRoom(index uint64) []*window.Slice
	// release hands back slices returned by extract or makeRoom once they are encoded
	release(slices []*window.Slice)
	Len() int
}

type ringStore struct {
	*partitioned.Store
}

func (r ringStore) extract(ts uint64) []*window.Slice {
	return r.ExtractSlicesUntilTs(ts)
}

func (r ringStore) makeRoom(index uint64) []*window.Slice {
	c := uint64(r.Capacity())
	if index < c {
		return nil
	}
	return r.DropSlicesBefore(index - c + 1)
}

// release is a no-op, ring slots are reused by the ring itself.
func (r ringStore) release([]*window.Slice) {}

type bucketStore struct {
	*bucket.Store
}

func (b bucketStore) extract(ts uint64) []*window.Slice {
	return b.ExtractBucketsUntilTs(ts)
}

// makeRoom is never needed, the bucket store is unbounded.
func (b bucketStore) makeRoom(uint64) []*window.Slice {
	return nil
}

func (b bucketStore) release(slices []*window.Slice) {
	b.Recycle(slices...)
}
