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

package serde

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
)

// Decode reads one encoded slice from r. The state must have been written with the
// layout of fn. It returns io.EOF if r is exhausted before the first header byte.
func Decode(r io.Reader, fn *aggregation.Function) (*window.Slice, error) {
	var hp slicePreamble
	if err := binary.Read(r, binary.LittleEndian, &hp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	if hp.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorrupt, hp.Magic)
	}
	encoded := aggregation.Layout{
		Version:   hp.LayoutVersion,
		Kind:      aggregation.Kind(hp.Kind),
		InputType: tuple.DataType(hp.InputType),
		Size:      int(hp.StateSize),
	}
	want := fn.Layout()
	if encoded.Version != want.Version || encoded.Kind != want.Kind || encoded.InputType != want.InputType || encoded.Size != want.Size {
		return nil, fmt.Errorf("%w: encoded %s, want %s", ErrLayoutMismatch, encoded, want)
	}
	if hp.Start >= hp.End {
		return nil, fmt.Errorf("%w: invalid bounds [%d, %d)", ErrCorrupt, hp.Start, hp.End)
	}

	keyed := hp.Flags&flagKeyed != 0
	entry := int(hp.StateSize)
	if keyed {
		entry += 8
	}
	if int(hp.PayloadLen) != int(hp.NumStates)*entry || (!keyed && hp.NumStates > 1) {
		return nil, fmt.Errorf("%w: payload of %d bytes for %d states", ErrCorrupt, hp.PayloadLen, hp.NumStates)
	}
	payload := make([]byte, hp.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrCorrupt, err)
	}
	if sum := crc32.Checksum(payload, crcTable); sum != hp.Checksum {
		return nil, fmt.Errorf("%w: checksum %#x, want %#x", ErrCorrupt, sum, hp.Checksum)
	}

	s := window.NewSlice(hp.Start, hp.End, hp.Index, fn, keyed)
	for off := 0; off < len(payload); off += entry {
		var key uint64
		state := payload[off : off+entry]
		if keyed {
			key = binary.LittleEndian.Uint64(state)
			state = state[8:]
		}
		copy(s.State(key), state)
	}
	return s, nil
}

// DecodeAll decodes every slice in data.
func DecodeAll(r io.Reader, fn *aggregation.Function) ([]*window.Slice, error) {
	var out []*window.Slice
	for {
		s, err := Decode(r, fn)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
