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

import "errors"

var (
	// ErrNoBufferAvailable is returned when a pooled buffer could not be acquired in time.
	ErrNoBufferAvailable = errors.New("no buffer available")
	// ErrAlreadyConfigured is returned when the pool of a manager is configured twice.
	ErrAlreadyConfigured = errors.New("buffer manager already configured")
	// ErrNotConfigured is returned when buffers are requested before the pool is configured.
	ErrNotConfigured = errors.New("buffer manager not configured")
	// ErrUnpooledLimit is returned when an unpooled allocation would exceed the configured byte limit.
	ErrUnpooledLimit = errors.New("unpooled buffer limit exceeded")
	// ErrBufferLeak is returned by Close when buffers are still referenced after the drain deadline.
	ErrBufferLeak = errors.New("buffer leak")
	// ErrClosed is returned for acquisitions on a closed manager.
	ErrClosed = errors.New("buffer manager closed")
)
