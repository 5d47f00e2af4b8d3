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
	"fmt"
	"time"

	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

// Strategy selects how workers keep partial state.
type Strategy string

const (
	// Slicing keeps the slices of the periodic decomposition in a ring; windows are
	// assembled from slices by the merger.
	Slicing Strategy = "slicing"
	// Bucketing keeps one bucket per window; every record is lifted into each window
	// containing it.
	Bucketing Strategy = "bucketing"
)

// ParseStrategy returns the strategy named s.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Slicing, Bucketing:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// LatePolicy decides what happens to records below the floor of a worker store.
type LatePolicy string

const (
	// Drop counts and logs late records and goes on.
	Drop LatePolicy = "drop"
	// Fail stops the operator with the ProcessingError of the first late record.
	Fail LatePolicy = "fail"
)

// ParseLatePolicy returns the policy named s.
func ParseLatePolicy(s string) (LatePolicy, error) {
	switch LatePolicy(s) {
	case Drop, Fail:
		return LatePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown late record policy %q", s)
	}
}

type options struct {
	workers  int
	strategy Strategy
	// capacity is the number of slices of a worker ring
	capacity int
	// slack overrides the default slack of the ring when set
	slack    uint64
	slackSet bool

	latePolicy     LatePolicy
	outputTimeout  time.Duration
	// flushOnClose emits every open window when the input is closed, otherwise only the
	// windows the final watermark closes are emitted
	flushOnClose   bool
	checkpointer   *checkpoint.Checkpointer
	originID       uint64
	// transportLimit caps the bytes of unpooled transport buffers, 0 is unlimited
	transportLimit int
	// transportChunk is the largest transport buffer, 0 puts a publication in one buffer
	transportChunk int

	timestampField string
	keyField       string
	valueField     string
}

// DefaultOptions returns the default operator options.
func DefaultOptions() *options {
	return &options{
		workers:        1,
		strategy:       Slicing,
		capacity:       64,
		latePolicy:     Drop,
		flushOnClose:   true,
		timestampField: "ts",
		valueField:     "value",
	}
}

// Option to apply on the operator.
type Option func(*options) error

// WithWorkers sets the number of workers.
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of workers %d", n)
		}
		o.workers = n
		return nil
	}
}

// WithStrategy sets how workers keep partial state.
func WithStrategy(s Strategy) Option {
	return func(o *options) error {
		if _, err := ParseStrategy(string(s)); err != nil {
			return err
		}
		o.strategy = s
		return nil
	}
}

// WithCapacity sets the number of slices of a worker ring.
func WithCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid slice capacity %d", n)
		}
		o.capacity = n
		return nil
	}
}

// WithSlack sets how many slices before the first record a worker ring accepts.
func WithSlack(n uint64) Option {
	return func(o *options) error {
		o.slack = n
		o.slackSet = true
		return nil
	}
}

// WithLatePolicy sets the late record policy.
func WithLatePolicy(p LatePolicy) Option {
	return func(o *options) error {
		if _, err := ParseLatePolicy(string(p)); err != nil {
			return err
		}
		o.latePolicy = p
		return nil
	}
}

// WithOutputTimeout bounds the wait for an output buffer, 0 blocks.
func WithOutputTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.outputTimeout = d
		return nil
	}
}

// WithFlushOnClose sets whether open windows are emitted when the input is closed.
func WithFlushOnClose(f bool) Option {
	return func(o *options) error {
		o.flushOnClose = f
		return nil
	}
}

// WithCheckpointer persists the merged slices.
func WithCheckpointer(c *checkpoint.Checkpointer) Option {
	return func(o *options) error {
		o.checkpointer = c
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

// WithTransport bounds the unpooled transport buffers between workers and the merger.
func WithTransport(limit, chunk int) Option {
	return func(o *options) error {
		if limit < 0 || chunk < 0 {
			return fmt.Errorf("invalid transport limit %d or chunk %d", limit, chunk)
		}
		o.transportLimit = limit
		o.transportChunk = chunk
		return nil
	}
}

// WithFields names the input columns. An empty key makes the aggregation non-keyed.
func WithFields(timestamp, key, value string) Option {
	return func(o *options) error {
		if timestamp == "" || value == "" {
			return fmt.Errorf("timestamp and value fields are required")
		}
		o.timestampField = timestamp
		o.keyField = key
		o.valueField = value
		return nil
	}
}
