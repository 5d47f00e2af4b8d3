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

package generator

import (
	"fmt"

	"github.com/numaproj/numaslice/pkg/tuple"
)

type options struct {
	records          int
	recordsPerBuffer int
	keys             int
	origins          int
	startTs          uint64
	step             uint64
	value            int64
	disorder         uint64
	valueType        tuple.DataType
}

func defaultOptions() *options {
	return &options{
		records:          30,
		recordsPerBuffer: 10,
		keys:             1,
		origins:          1,
		step:             1,
		value:            1,
		valueType:        tuple.Int64,
	}
}

type Option func(*options) error

// WithRecords sets the number of records generated per origin.
func WithRecords(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("invalid number of records %d", n)
		}
		o.records = n
		return nil
	}
}

// WithRecordsPerBuffer sets how many records fill a buffer.
func WithRecordsPerBuffer(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of records per buffer %d", n)
		}
		o.recordsPerBuffer = n
		return nil
	}
}

// WithKeys sets the number of distinct keys, assigned round robin.
func WithKeys(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of keys %d", n)
		}
		o.keys = n
		return nil
	}
}

// WithOrigins sets the number of origins. Origin ids are 0 to n-1.
func WithOrigins(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of origins %d", n)
		}
		o.origins = n
		return nil
	}
}

// WithTimestamps sets the first timestamp and the distance between records of an origin.
func WithTimestamps(start, step uint64) Option {
	return func(o *options) error {
		if step == 0 {
			return fmt.Errorf("timestamp step must be positive")
		}
		o.startTs = start
		o.step = step
		return nil
	}
}

// WithValue sets the value of every record. 0 writes the record number instead.
func WithValue(v int64) Option {
	return func(o *options) error {
		o.value = v
		return nil
	}
}

// WithDisorder holds buffer watermarks back by d.
func WithDisorder(d uint64) Option {
	return func(o *options) error {
		o.disorder = d
		return nil
	}
}

// WithValueType sets the type of the value column.
func WithValueType(t tuple.DataType) Option {
	return func(o *options) error {
		o.valueType = t
		return nil
	}
}
