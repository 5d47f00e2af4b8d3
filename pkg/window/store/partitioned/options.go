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

package partitioned

type options struct {
	// slack is how many slices below the first requested one the store still accepts
	// before the floor was ever set by a flush
	slack uint64
}

// Option to apply on the partitioned store.
type Option func(*options)

// WithSlack sets how many slices before the first record of the stream remain open for
// out-of-order data. It defaults to a quarter of the capacity.
func WithSlack(n uint64) Option {
	return func(o *options) {
		o.slack = n
	}
}
