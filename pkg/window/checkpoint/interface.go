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

// Package checkpoint persists the partial aggregates of open slices so that an operator
// can resume after a restart or hand its state to another instance. Slices are stored in
// their wire encoding under "<operator>/<start>-<end>" in a key value store.
package checkpoint

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by stores for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// KVStorer is the key value store checkpoints are written to.
type KVStorer interface {
	// GetAllKeys returns all the keys in the store, sorted.
	GetAllKeys(context.Context) ([]string, error)
	// DeleteKey deletes the key from the store.
	DeleteKey(context.Context, string) error
	// PutKV inserts a key-value pair into the store.
	PutKV(context.Context, string, []byte) error
	// GetValue gets the value of the given key, ErrKeyNotFound if it is missing.
	GetValue(context.Context, string) ([]byte, error)
	// GetStoreName returns the bucket name of the store.
	GetStoreName() string
	// Close closes the backend connection.
	Close()
}
