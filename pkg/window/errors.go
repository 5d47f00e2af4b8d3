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

package window

import (
	"errors"
	"fmt"
)

var (
	// ErrLateRecord is matched by a ProcessingError for data below the floor of a store.
	ErrLateRecord = errors.New("late record")
	// ErrStoreFull is matched by a ProcessingError for data beyond the capacity of a store.
	ErrStoreFull = errors.New("slice store full")
)

// ProcessingError is returned by slice stores for out-of-order or out-of-bounds access.
// Callers decide whether to drop the record or fail.
type ProcessingError struct {
	// Ts is the timestamp of the record, if the access was by timestamp
	Ts    uint64
	// Index is the logical slice index that was requested, for index based stores
	Index uint64
	// Floor is the lowest timestamp or index the store still accepts
	Floor uint64
	Err   error
}

func (e *ProcessingError) Error() string {
	if errors.Is(e.Err, ErrStoreFull) {
		return fmt.Sprintf("%v: ts %d (slice %d) is beyond the open slices starting at %d", e.Err, e.Ts, e.Index, e.Floor)
	}
	return fmt.Sprintf("%v: ts %d (slice %d) is below the store floor %d", e.Err, e.Ts, e.Index, e.Floor)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsProcessingError reports whether err is a ProcessingError.
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}
