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

package buffer

import "time"

type options struct {
	// bufferSize is the size of a pooled buffer in bytes
	bufferSize      int
	// numberOfBuffers is the number of pooled buffers
	numberOfBuffers int
	// unpooledLimit caps the bytes held by unpooled buffers, 0 means unlimited
	unpooledLimit   int
	// drainInterval is how often Close checks for outstanding references
	drainInterval   time.Duration
}

func defaultOptions() *options {
	return &options{
		drainInterval: 10 * time.Millisecond,
	}
}

// Option to apply on the buffer manager.
type Option func(*options) error

// WithPool configures the pool on creation, equivalent to calling Configure.
func WithPool(bufferSize, numberOfBuffers int) Option {
	return func(o *options) error {
		o.bufferSize = bufferSize
		o.numberOfBuffers = numberOfBuffers
		return nil
	}
}

// WithUnpooledLimit caps the total capacity of unpooled buffers.
func WithUnpooledLimit(bytes int) Option {
	return func(o *options) error {
		o.unpooledLimit = bytes
		return nil
	}
}

// WithDrainInterval sets the poll interval used while draining on Close.
func WithDrainInterval(d time.Duration) Option {
	return func(o *options) error {
		o.drainInterval = d
		return nil
	}
}
