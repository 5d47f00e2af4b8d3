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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/window"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "numaslice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, window.Spec{Size: 10, Slide: 5}, c.Window.Spec())
	assert.Equal(t, 4096, c.BufferManager.BufferSize)
	assert.Equal(t, "slicing", c.Operator.Strategy)
	assert.True(t, c.Operator.FlushOnClose)
	assert.Equal(t, CheckpointNone, c.Checkpoint.Store)
	assert.Equal(t, 30, c.Generator.Records)
	fn, err := c.Window.Function()
	require.NoError(t, err)
	assert.Equal(t, aggregation.Sum, fn.Kind())
	opts, err := c.Operator.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 8)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
window:
  size: 60
  slide: 20
  aggregation: avg
  inputType: float64
  keyed: true
operator:
  workers: 4
  strategy: bucketing
  latePolicy: fail
  outputTimeout: 250ms
checkpoint:
  store: jetstream
  jetstream:
    url: nats://nats:4222
    ttl: 1h
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, window.Spec{Size: 60, Slide: 20}, c.Window.Spec())
	assert.True(t, c.Window.Keyed)
	assert.Equal(t, 4, c.Operator.Workers)
	assert.Equal(t, "bucketing", c.Operator.Strategy)
	assert.Equal(t, 250*time.Millisecond, c.Operator.OutputTimeout)
	assert.Equal(t, CheckpointJetStream, c.Checkpoint.Store)
	assert.Equal(t, "nats://nats:4222", c.Checkpoint.JetStream.URL)
	assert.Equal(t, time.Hour, c.Checkpoint.JetStream.TTL)
	// untouched keys keep their defaults
	assert.Equal(t, 64, c.Operator.Capacity)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("NUMASLICE_WINDOW_SIZE", "100")
	t.Setenv("NUMASLICE_WINDOW_SLIDE", "100")
	c, err := Load(writeConfig(t, "window:\n  size: 60\n"))
	require.NoError(t, err)
	assert.True(t, c.Window.Spec().IsTumbling())
	assert.Equal(t, uint64(100), c.Window.Size)
}

func TestLoad_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"slide":       "window:\n  slide: 0\n",
		"aggregation": "window:\n  aggregation: median\n",
		"type":        "window:\n  inputType: string\n",
		"strategy":    "operator:\n  strategy: hopping\n",
		"workers":     "operator:\n  workers: 0\n",
		"store":       "checkpoint:\n  store: etcd\n",
		"pool":        "bufferManager:\n  numberOfBuffers: 0\n",
		"generator":   "generator:\n  recordsPerBuffer: 1000\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
