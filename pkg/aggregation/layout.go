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
	"fmt"

	"github.com/numaproj/numaslice/pkg/tuple"
)

// LayoutVersion is bumped whenever the state layout of any kind changes. It is written into
// serialized slices so that old state is never combined with a newer layout.
const LayoutVersion uint16 = 1

// Layout describes a state block. Offsets are relative to the start of the block; an
// offset of -1 means the block has no such field.
type Layout struct {
	Version     uint16
	Kind        Kind
	InputType   tuple.DataType
	Size        int
	CountOffset int
	ValueOffset int
}

func layoutFor(kind Kind, input tuple.DataType) Layout {
	l := Layout{
		Version:     LayoutVersion,
		Kind:        kind,
		InputType:   input,
		CountOffset: -1,
		ValueOffset: 0,
	}
	switch kind {
	case Count:
		l.CountOffset, l.ValueOffset = 0, -1
		l.Size = tuple.FieldWidth
	case Avg:
		// [count:8][sum:8], the division happens in Lower
		l.CountOffset, l.ValueOffset = 0, tuple.FieldWidth
		l.Size = 2 * tuple.FieldWidth
	default:
		l.Size = tuple.FieldWidth
	}
	return l
}

// Compatible returns an error if state written with other cannot be combined into l.
func (l Layout) Compatible(other Layout) error {
	if l != other {
		return fmt.Errorf("incompatible state layout: have %s, got %s", l, other)
	}
	return nil
}

func (l Layout) String() string {
	return fmt.Sprintf("v%d/%s(%s)/%dB", l.Version, l.Kind, l.InputType, l.Size)
}
