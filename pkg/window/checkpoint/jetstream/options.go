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

package jetstream

import "time"

type options struct {
	// createBucket creates the bucket if it does not exist
	createBucket bool
	// history is the number of revisions kept per key when the bucket is created
	history      uint8
	// ttl expires checkpoints that were not rewritten, 0 keeps them forever
	ttl          time.Duration
}

func defaultOptions() *options {
	return &options{
		createBucket: true,
		history:      1,
	}
}

// Option is to apply different options
type Option func(*options)

// WithoutBucketCreation only binds to an existing bucket.
func WithoutBucketCreation() Option {
	return func(o *options) {
		o.createBucket = false
	}
}

// WithTTL sets the max age of entries of a created bucket.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}
