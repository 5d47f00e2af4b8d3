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
Package jetstream implements the checkpoint key value store on a NATS JetStream KV bucket.
*/
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/window/checkpoint"
)

// jetStreamStore implements the checkpoint KV store backed up by Jetstream.
type jetStreamStore struct {
	kvName string
	kv     nats.KeyValue
	log    *zap.SugaredLogger
	opts   *options
}

var _ checkpoint.KVStorer = (*jetStreamStore)(nil)

// NewKVJetStreamKVStore binds to the bucket kvName, creating it unless told otherwise.
func NewKVJetStreamKVStore(ctx context.Context, kvName string, js nats.JetStreamContext, opts ...Option) (checkpoint.KVStorer, error) {
	kvOpts := defaultOptions()
	for _, o := range opts {
		o(kvOpts)
	}
	log := logging.FromContext(ctx).With("kvName", kvName)

	kv, err := js.KeyValue(kvName)
	if errors.Is(err, nats.ErrBucketNotFound) && kvOpts.createBucket {
		log.Infow("Creating checkpoint bucket")
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  kvName,
			History: kvOpts.history,
			TTL:     kvOpts.ttl,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind kv store: %w", err)
	}
	return &jetStreamStore{
		kvName: kvName,
		kv:     kv,
		log:    log,
		opts:   kvOpts,
	}, nil
}

// GetAllKeys returns all the keys in the key-value store.
func (jss *jetStreamStore) GetAllKeys(_ context.Context) ([]string, error) {
	keyLister, err := jss.kv.ListKeys()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = keyLister.Stop()
	}()

	keys := []string{}
	for key := range keyLister.Keys() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetValue returns the value for a given key.
func (jss *jetStreamStore) GetValue(_ context.Context, k string) ([]byte, error) {
	keyValueEntry, err := jss.kv.Get(k)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrKeyNotFound, k)
	}
	if err != nil {
		return nil, err
	}
	return keyValueEntry.Value(), nil
}

// GetStoreName returns the store name.
func (jss *jetStreamStore) GetStoreName() string {
	return jss.kv.Bucket()
}

// DeleteKey deletes the key from the JS key-value store.
func (jss *jetStreamStore) DeleteKey(_ context.Context, k string) error {
	// will return error if nats connection is closed
	return jss.kv.Delete(k)
}

// PutKV puts an element to the JS key-value store.
func (jss *jetStreamStore) PutKV(_ context.Context, k string, v []byte) error {
	// will return error if nats connection is closed
	_, err := jss.kv.Put(k, v)
	return err
}

// Close is a no-op, the connection belongs to the caller.
func (jss *jetStreamStore) Close() {
	jss.log.Debug("JetStream checkpoint store closed")
}
