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

// Package serde defines the wire layout of a slice: a fixed little endian header followed
// by the raw state blocks, keyed slices prefixing every block with its key. The layout is
// the one contract kept stable across versions; the header carries the aggregation layout
// version so incompatible state is refused rather than combined.
package serde

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	"github.com/numaproj/numaslice/pkg/window"
)

// magic marks the start of every encoded slice.
const magic uint32 = 0x534c4331

const flagKeyed uint8 = 1

var (
	// ErrCorrupt is returned for data that is not a complete, intact encoded slice.
	ErrCorrupt = errors.New("corrupt slice encoding")
	// ErrLayoutMismatch is returned when the encoded state was written with another layout.
	ErrLayoutMismatch = errors.New("slice state layout mismatch")
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// slicePreamble is the fixed header of an encoded slice.
type slicePreamble struct {
	Magic         uint32
	LayoutVersion uint16
	Kind          uint8
	InputType     uint8
	Flags         uint8
	StateSize     uint32
	Start         uint64
	End           uint64
	Index         uint64
	NumStates     uint32
	PayloadLen    uint32
	Checksum      uint32
}

// HeaderSize is the encoded size of the header in bytes.
var HeaderSize = binary.Size(slicePreamble{})

// EncodedSize returns the number of bytes Encode produces for s.
func EncodedSize(s *window.Slice) int {
	return HeaderSize + payloadLen(s)
}

func payloadLen(s *window.Slice) int {
	entry := s.Function().StateSize()
	if s.Keyed() {
		entry += 8
	}
	return s.Len() * entry
}

// Encode returns the encoding of s.
func Encode(s *window.Slice) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, EncodedSize(s)))
	if err := EncodeTo(buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the encoding of s to w.
func EncodeTo(w io.Writer, s *window.Slice) error {
	payload := make([]byte, 0, payloadLen(s))
	var key [8]byte
	s.Range(func(k uint64, state []byte) bool {
		if s.Keyed() {
			binary.LittleEndian.PutUint64(key[:], k)
			payload = append(payload, key[:]...)
		}
		payload = append(payload, state...)
		return true
	})

	layout := s.Function().Layout()
	hp := slicePreamble{
		Magic:         magic,
		LayoutVersion: layout.Version,
		Kind:          uint8(layout.Kind),
		InputType:     uint8(layout.InputType),
		StateSize:     uint32(layout.Size),
		Start:         s.Start(),
		End:           s.End(),
		Index:         s.Index(),
		NumStates:     uint32(s.Len()),
		PayloadLen:    uint32(len(payload)),
		Checksum:      crc32.Checksum(payload, crcTable),
	}
	if s.Keyed() {
		hp.Flags |= flagKeyed
	}

	// write the fixed values
	if err := binary.Write(w, binary.LittleEndian, hp); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
