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

// Package tuple describes the fixed-width row format records are stored in inside a buffer.
// Every field is 8 bytes wide and little endian; a value is handled as its raw 64 bit pattern
// so that aggregation code can stay type agnostic until the data type is resolved once at setup.
package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DataType is the physical type of a field.
type DataType int

const (
	UInt64 DataType = iota
	Int64
	Float64
)

// FieldWidth is the width of every field in bytes.
const FieldWidth = 8

func (t DataType) String() string {
	switch t {
	case UInt64:
		return "uint64"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseDataType parses the name of a data type.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "uint64", "u64":
		return UInt64, nil
	case "int64", "i64":
		return Int64, nil
	case "float64", "f64", "double":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// Column names a field and its type.
type Column struct {
	Name string
	Type DataType
}

// Field is a column with its resolved offset inside a row.
type Field struct {
	Column
	Offset int
}

// Schema is an ordered list of fields with computed offsets.
type Schema struct {
	fields  []Field
	index   map[string]int
	rowSize int
}

// NewSchema computes the offsets of the given columns.
func NewSchema(columns ...Column) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(columns)),
		index:  make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, ok := s.index[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		s.index[c.Name] = len(s.fields)
		s.fields = append(s.fields, Field{Column: c, Offset: s.rowSize})
		s.rowSize += FieldWidth
	}
	return s, nil
}

// MustNewSchema is NewSchema that panics on error, for static schemas.
func MustNewSchema(columns ...Column) *Schema {
	s, err := NewSchema(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// RowSize returns the number of bytes a row occupies.
func (s *Schema) RowSize() int {
	return s.rowSize
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// RowsPerBuffer returns how many rows fit into a buffer of the given capacity.
func (s *Schema) RowsPerBuffer(capacity int) int {
	if s.rowSize == 0 {
		return 0
	}
	return capacity / s.rowSize
}

// Row returns the i-th row of data.
func (s *Schema) Row(data []byte, i int) []byte {
	return data[i*s.rowSize : (i+1)*s.rowSize]
}

// Raw reads the raw bits of a field.
func (f Field) Raw(row []byte) uint64 {
	return binary.LittleEndian.Uint64(row[f.Offset:])
}

// SetRaw writes the raw bits of a field.
func (f Field) SetRaw(row []byte, v uint64) {
	binary.LittleEndian.PutUint64(row[f.Offset:], v)
}

// Int64Bits and friends convert between typed values and their raw bits.
func Int64Bits(v int64) uint64 { return uint64(v) }

func Float64Bits(v float64) uint64 { return math.Float64bits(v) }

func BitsInt64(v uint64) int64 { return int64(v) }

func BitsFloat64(v uint64) float64 { return math.Float64frombits(v) }

// Value renders raw bits as a Go value of the given type.
func Value(t DataType, raw uint64) any {
	switch t {
	case Int64:
		return int64(raw)
	case Float64:
		return math.Float64frombits(raw)
	default:
		return raw
	}
}
