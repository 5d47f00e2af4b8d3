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

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natstest "github.com/numaproj/numaslice/pkg/shared/clients/nats/test"
	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

func TestJetStreamKVStoreOperations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	kvName := "testJetStreamCheckpoint"

	s := natstest.RunJetStreamServer(t)
	defer natstest.ShutdownJetStreamServer(t, s)

	testClient, js := natstest.JetStreamClient(t, s)
	defer testClient.Close()

	// binding to a missing bucket fails when creation is off
	_, err := NewKVJetStreamKVStore(ctx, kvName, js, WithoutBucketCreation())
	assert.ErrorIs(t, err, nats.ErrBucketNotFound)

	kvStore, err := NewKVJetStreamKVStore(ctx, kvName, js)
	require.NoError(t, err)
	defer kvStore.Close()
	assert.Equal(t, kvName, kvStore.GetStoreName())

	keys, err := kvStore.GetAllKeys(ctx)
	assert.NoError(t, err)
	assert.Empty(t, keys)

	// Test Put
	assert.NoError(t, kvStore.PutKV(ctx, "op/5-10", []byte("value2")))
	assert.NoError(t, kvStore.PutKV(ctx, "op/0-5", []byte("value1")))

	// Test Get
	value, err := kvStore.GetValue(ctx, "op/0-5")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
	_, err = kvStore.GetValue(ctx, "op/10-15")
	assert.ErrorIs(t, err, checkpoint.ErrKeyNotFound)

	// Test get all keys
	keys, err = kvStore.GetAllKeys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"op/0-5", "op/5-10"}, keys)

	// Test delete
	assert.NoError(t, kvStore.DeleteKey(ctx, "op/0-5"))
	keys, err = kvStore.GetAllKeys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"op/5-10"}, keys)

	// binding again finds the existing bucket
	again, err := NewKVJetStreamKVStore(ctx, kvName, js, WithoutBucketCreation())
	require.NoError(t, err)
	value, err = again.GetValue(ctx, "op/5-10")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value2"), value)
}
