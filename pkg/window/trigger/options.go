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

package trigger

import (
	"time"

	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

type options struct {
	// outputTimeout bounds the wait for an output buffer, 0 waits until the context is done
	outputTimeout time.Duration
	// originID is written into every emitted buffer
	originID      uint64
	// checkpointer persists the slices the merger holds, nil disables checkpoints
	checkpointer  *checkpoint.Checkpointer
	// queueSize is the capacity of the publication queue
	queueSize     int
}

func defaultOptions() *options {
	return &options{
		queueSize: 16,
	}
}

// Option to apply on the merger.
type Option func(*options) error

// WithOutputTimeout bounds the wait for an output buffer. The merger fails with
// ErrOutputBackpressure when it expires.
func WithOutputTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.outputTimeout = d
		return nil
	}
}

// WithOriginID sets the origin id of emitted buffers.
func WithOriginID(id uint64) Option {
	return func(o *options) error {
		o.originID = id
		return nil
	}
}

// WithCheckpointer persists the merger state after every publication.
func WithCheckpointer(c *checkpoint.Checkpointer) Option {
	return func(o *options) error {
		o.checkpointer = c
		return nil
	}
}

// WithQueueSize sets the number of publications that can wait for the merger.
func WithQueueSize(n int) Option {
	return func(o *options) error {
		o.queueSize = n
		return nil
	}
}
