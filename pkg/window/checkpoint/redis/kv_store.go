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

/*
Package redis implements the checkpoint key value store on Redis. A bucket is one Redis
hash, so listing the keys of a bucket never scans the keyspace.
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

// redisStore implements the checkpoint KV store backed up by a Redis hash.
type redisStore struct {
	bucketName string
	client     redis.UniversalClient
	log        *zap.SugaredLogger
}

var _ checkpoint.KVStorer = (*redisStore)(nil)

// NewRedisClient returns a new Redis client.
func NewRedisClient(options *redis.UniversalOptions) redis.UniversalClient {
	return redis.NewUniversalClient(options)
}

// NewKVRedisStore returns a store writing into the hash named bucketName. The store owns
// the client and closes it on Close.
func NewKVRedisStore(ctx context.Context, bucketName string, client redis.UniversalClient) (checkpoint.KVStorer, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &redisStore{
		bucketName: bucketName,
		client:     client,
		log:        logging.FromContext(ctx).With("bucketName", bucketName),
	}, nil
}

// GetAllKeys returns all the keys in the bucket.
func (rs *redisStore) GetAllKeys(ctx context.Context) ([]string, error) {
	keys, err := rs.client.HKeys(ctx, rs.bucketName).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// GetValue returns the value for a given key.
func (rs *redisStore) GetValue(ctx context.Context, k string) ([]byte, error) {
	val, err := rs.client.HGet(ctx, rs.bucketName, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrKeyNotFound, k)
	}
	return val, err
}

// GetStoreName returns the store name.
func (rs *redisStore) GetStoreName() string {
	return rs.bucketName
}

// DeleteKey deletes the key from the bucket.
func (rs *redisStore) DeleteKey(ctx context.Context, k string) error {
	return rs.client.HDel(ctx, rs.bucketName, k).Err()
}

// PutKV puts an element into the bucket.
func (rs *redisStore) PutKV(ctx context.Context, k string, v []byte) error {
	return rs.client.HSet(ctx, rs.bucketName, k, v).Err()
}

// Close closes the redis client.
func (rs *redisStore) Close() {
	if err := rs.client.Close(); err != nil {
		rs.log.Errorw("Failed to close the redis client", zap.Error(err))
	}
}
