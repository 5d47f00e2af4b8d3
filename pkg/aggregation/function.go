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
	"fmt"
	"math"

	"github.com/numaproj/numaslice/pkg/tuple"
)

var le = binary.LittleEndian

// Function is an aggregation bound to an input type. All operations take raw state blocks
// of Layout().Size bytes and raw 64 bit values; the typed implementation is selected in New
// so the per record calls do not branch on the kind.
type Function struct {
	layout  Layout
	output  tuple.DataType
	reset   func(state []byte)
	lift    func(state []byte, raw uint64)
	combine func(dst, src []byte)
	lower   func(state []byte) uint64
}

// New builds the function for the given kind and input type.
func New(kind Kind, input tuple.DataType) (*Function, error) {
	f := &Function{layout: layoutFor(kind, input), output: input}
	switch input {
	case tuple.Int64:
		bind(f, kind, func(r uint64) int64 { return int64(r) }, func(v int64) uint64 { return uint64(v) }, math.MinInt64, math.MaxInt64)
	case tuple.UInt64:
		bind(f, kind, func(r uint64) uint64 { return r }, func(v uint64) uint64 { return v }, 0, math.MaxUint64)
	case tuple.Float64:
		bind(f, kind, math.Float64frombits, math.Float64bits, math.Inf(-1), math.Inf(1))
	default:
		return nil, fmt.Errorf("unsupported input type %s for %s", input, kind)
	}
	if f.lift == nil {
		return nil, fmt.Errorf("unsupported aggregation %s", kind)
	}
	switch kind {
	case Count:
		f.output = tuple.UInt64
	case Avg:
		f.output = tuple.Float64
	}
	return f, nil
}

// MustNew is New that panics, for statically known functions.
func MustNew(kind Kind, input tuple.DataType) *Function {
	f, err := New(kind, input)
	if err != nil {
		panic(err)
	}
	return f
}

type number interface {
	~int64 | ~uint64 | ~float64
}

func bind[T number](f *Function, kind Kind, dec func(uint64) T, enc func(T) uint64, lowest, highest T) {
	// slots are located through the layout; a kind only touches the slots its layout has
	l := f.layout
	value := func(state []byte) []byte { return state[l.ValueOffset : l.ValueOffset+tuple.FieldWidth] }
	count := func(state []byte) []byte { return state[l.CountOffset : l.CountOffset+tuple.FieldWidth] }
	get := func(state []byte) T { return dec(le.Uint64(value(state))) }
	put := func(state []byte, v T) { le.PutUint64(value(state), enc(v)) }
	getN := func(state []byte) uint64 { return le.Uint64(count(state)) }
	putN := func(state []byte, n uint64) { le.PutUint64(count(state), n) }

	switch kind {
	case Sum:
		f.reset = func(s []byte) { put(s, 0) }
		f.lift = func(s []byte, raw uint64) { put(s, get(s)+dec(raw)) }
		f.combine = func(d, s []byte) { put(d, get(d)+get(s)) }
		f.lower = func(s []byte) uint64 { return le.Uint64(value(s)) }
	case Count:
		f.reset = func(s []byte) { putN(s, 0) }
		f.lift = func(s []byte, _ uint64) { putN(s, getN(s)+1) }
		f.combine = func(d, s []byte) { putN(d, getN(d)+getN(s)) }
		f.lower = getN
	case Min:
		f.reset = func(s []byte) { put(s, highest) }
		f.lift = func(s []byte, raw uint64) {
			if v := dec(raw); v < get(s) {
				put(s, v)
			}
		}
		f.combine = func(d, s []byte) {
			if v := get(s); v < get(d) {
				put(d, v)
			}
		}
		f.lower = func(s []byte) uint64 { return le.Uint64(value(s)) }
	case Max:
		f.reset = func(s []byte) { put(s, lowest) }
		f.lift = func(s []byte, raw uint64) {
			if v := dec(raw); v > get(s) {
				put(s, v)
			}
		}
		f.combine = func(d, s []byte) {
			if v := get(s); v > get(d) {
				put(d, v)
			}
		}
		f.lower = func(s []byte) uint64 { return le.Uint64(value(s)) }
	case Avg:
		f.reset = func(s []byte) {
			putN(s, 0)
			put(s, 0)
		}
		f.lift = func(s []byte, raw uint64) {
			putN(s, getN(s)+1)
			put(s, get(s)+dec(raw))
		}
		f.combine = func(d, s []byte) {
			putN(d, getN(d)+getN(s))
			put(d, get(d)+get(s))
		}
		// always a float64 result, integer inputs are not truncated
		f.lower = func(s []byte) uint64 {
			n := getN(s)
			if n == 0 {
				return math.Float64bits(0)
			}
			return math.Float64bits(float64(get(s)) / float64(n))
		}
	}
}

// Layout returns the state layout.
func (f *Function) Layout() Layout {
	return f.layout
}

// StateSize returns the size of a state block in bytes.
func (f *Function) StateSize() int {
	return f.layout.Size
}

// Kind returns the aggregation kind.
func (f *Function) Kind() Kind {
	return f.layout.Kind
}

// InputType returns the type values are lifted as.
func (f *Function) InputType() tuple.DataType {
	return f.layout.InputType
}

// OutputType returns the type of the value produced by Lower.
func (f *Function) OutputType() tuple.DataType {
	return f.output
}

// Reset writes the identity element into state.
func (f *Function) Reset(state []byte) {
	f.reset(state[:f.layout.Size])
}

// Lift folds one input value, given as raw bits of the input type, into state.
func (f *Function) Lift(state []byte, raw uint64) {
	f.lift(state, raw)
}

// Combine merges src into dst. Both must have been written by this function.
func (f *Function) Combine(dst, src []byte) {
	if len(dst) < f.layout.Size || len(src) < f.layout.Size {
		panic(fmt.Sprintf("aggregation: combine of short state blocks (%d, %d) with layout %s", len(dst), len(src), f.layout))
	}
	f.combine(dst, src)
}

// Lower returns the final value as raw bits of OutputType.
func (f *Function) Lower(state []byte) uint64 {
	return f.lower(state)
}

// NewState allocates a reset state block.
func (f *Function) NewState() []byte {
	s := make([]byte, f.layout.Size)
	f.reset(s)
	return s
}
