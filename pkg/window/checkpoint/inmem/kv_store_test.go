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

package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

func TestInMemKVStore(t *testing.T) {
	ctx := context.Background()
	kvStore, err := NewKVInMemKVStore(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test", kvStore.GetStoreName())

	v := []byte("value1")
	assert.NoError(t, kvStore.PutKV(ctx, "b", v))
	assert.NoError(t, kvStore.PutKV(ctx, "a", []byte("value0")))
	// the store keeps its own copy
	v[0] = 'X'
	got, err := kvStore.GetValue(ctx, "b")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value1"), got)

	keys, err := kvStore.GetAllKeys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.NoError(t, kvStore.DeleteKey(ctx, "a"))
	_, err = kvStore.GetValue(ctx, "a")
	assert.ErrorIs(t, err, checkpoint.ErrKeyNotFound)

	kvStore.Close()
	kvStore.Close()
	assert.Error(t, kvStore.PutKV(ctx, "c", nil))
	_, err = kvStore.GetAllKeys(ctx)
	assert.Error(t, err)
}
