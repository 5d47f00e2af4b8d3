//go:build redis

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

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

// Run with a local redis: go test -tags redis ./pkg/window/checkpoint/redis/
func TestRedisKVStoreOperations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	addr := os.Getenv("NUMASLICE_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := NewRedisClient(&redis.UniversalOptions{Addrs: []string{addr}})
	bucket := "numaslice-test-" + t.Name()
	require.NoError(t, client.Del(ctx, bucket).Err())

	kvStore, err := NewKVRedisStore(ctx, bucket, client)
	require.NoError(t, err)
	defer kvStore.Close()
	assert.Equal(t, bucket, kvStore.GetStoreName())

	assert.NoError(t, kvStore.PutKV(ctx, "op/5-10", []byte("value2")))
	assert.NoError(t, kvStore.PutKV(ctx, "op/0-5", []byte("value1")))

	value, err := kvStore.GetValue(ctx, "op/0-5")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	keys, err := kvStore.GetAllKeys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"op/0-5", "op/5-10"}, keys)

	assert.NoError(t, kvStore.DeleteKey(ctx, "op/0-5"))
	_, err = kvStore.GetValue(ctx, "op/0-5")
	assert.ErrorIs(t, err, checkpoint.ErrKeyNotFound)
	assert.NoError(t, client.Del(ctx, bucket).Err())
}
