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

// Package config loads the configuration of a numaslice process from a YAML file and
// NUMASLICE_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/tuple"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/operator"
)

// EnvPrefix prefixes the environment variables overriding configuration keys, with "."
// replaced by "_", e.g. NUMASLICE_WINDOW_SIZE.
const EnvPrefix = "NUMASLICE"

// Checkpoint store names.
const (
	CheckpointNone      = ""
	CheckpointInMem     = "inmem"
	CheckpointRedis     = "redis"
	CheckpointJetStream = "jetstream"
)

type Config struct {
	BufferManager BufferManagerConfig `json:"bufferManager"`
	Window        WindowConfig        `json:"window"`
	Operator      OperatorConfig      `json:"operator"`
	Checkpoint    CheckpointConfig    `json:"checkpoint"`
	Generator     GeneratorConfig     `json:"generator"`
	Metrics       MetricsConfig       `json:"metrics"`
}

// BufferManagerConfig sizes the input and output pools.
type BufferManagerConfig struct {
	BufferSize            int `json:"bufferSize"`
	NumberOfBuffers       int `json:"numberOfBuffers"`
	OutputBufferSize      int `json:"outputBufferSize"`
	OutputNumberOfBuffers int `json:"outputNumberOfBuffers"`
	// UnpooledLimit caps unpooled allocations of the output pool, 0 is unlimited
	UnpooledLimit         int `json:"unpooledLimit"`
}

type WindowConfig struct {
	Size        uint64 `json:"size"`
	Slide       uint64 `json:"slide"`
	Aggregation string `json:"aggregation"`
	InputType   string `json:"inputType"`
	Keyed       bool   `json:"keyed"`
}

// Spec returns the window spec.
func (w WindowConfig) Spec() window.Spec {
	return window.Spec{Size: w.Size, Slide: w.Slide}
}

// Function returns the aggregation function.
func (w WindowConfig) Function() (*aggregation.Function, error) {
	kind, err := aggregation.ParseKind(w.Aggregation)
	if err != nil {
		return nil, err
	}
	t, err := tuple.ParseDataType(w.InputType)
	if err != nil {
		return nil, err
	}
	return aggregation.New(kind, t)
}

type OperatorConfig struct {
	// ID prefixes checkpoint keys and labels metrics, a random id is used when empty
	ID             string        `json:"id"`
	Workers        int           `json:"workers"`
	Strategy       string        `json:"strategy"`
	Capacity       int           `json:"capacity"`
	LatePolicy     string        `json:"latePolicy"`
	OutputTimeout  time.Duration `json:"outputTimeout"`
	FlushOnClose   bool          `json:"flushOnClose"`
	OriginID       uint64        `json:"originId"`
	TransportLimit int           `json:"transportLimit"`
	TransportChunk int           `json:"transportChunk"`
}

// Options returns the operator options.
func (o OperatorConfig) Options() ([]operator.Option, error) {
	strategy, err := operator.ParseStrategy(o.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := operator.ParseLatePolicy(o.LatePolicy)
	if err != nil {
		return nil, err
	}
	return []operator.Option{
		operator.WithWorkers(o.Workers),
		operator.WithStrategy(strategy),
		operator.WithCapacity(o.Capacity),
		operator.WithLatePolicy(policy),
		operator.WithOutputTimeout(o.OutputTimeout),
		operator.WithFlushOnClose(o.FlushOnClose),
		operator.WithOriginID(o.OriginID),
		operator.WithTransport(o.TransportLimit, o.TransportChunk),
	}, nil
}

type CheckpointConfig struct {
	// Store is one of "", "inmem", "redis" or "jetstream"
	Store     string          `json:"store"`
	Bucket    string          `json:"bucket"`
	Redis     RedisConfig     `json:"redis"`
	JetStream JetStreamConfig `json:"jetstream"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type JetStreamConfig struct {
	URL      string        `json:"url"`
	User     string        `json:"user"`
	Password string        `json:"password"`
	TTL      time.Duration `json:"ttl"`
}

// GeneratorConfig drives the synthetic source of the run command.
type GeneratorConfig struct {
	Records          int    `json:"records"`
	RecordsPerBuffer int    `json:"recordsPerBuffer"`
	Keys             int    `json:"keys"`
	Origins          int    `json:"origins"`
	StartTs          uint64 `json:"startTs"`
	// Step is the timestamp distance of two consecutive records of an origin
	Step             uint64 `json:"step"`
	// Value is written into every record; 0 writes the record number
	Value            int64  `json:"value"`
	// Disorder lowers buffer watermarks, leaving room for out of order timestamps
	Disorder         uint64 `json:"disorder"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bufferManager.bufferSize", 4096)
	v.SetDefault("bufferManager.numberOfBuffers", 64)
	v.SetDefault("bufferManager.outputBufferSize", 4096)
	v.SetDefault("bufferManager.outputNumberOfBuffers", 16)
	v.SetDefault("bufferManager.unpooledLimit", 0)

	v.SetDefault("window.size", 10)
	v.SetDefault("window.slide", 5)
	v.SetDefault("window.aggregation", "sum")
	v.SetDefault("window.inputType", "int64")
	v.SetDefault("window.keyed", false)

	v.SetDefault("operator.id", "")
	v.SetDefault("operator.workers", 2)
	v.SetDefault("operator.strategy", string(operator.Slicing))
	v.SetDefault("operator.capacity", 64)
	v.SetDefault("operator.latePolicy", string(operator.Drop))
	v.SetDefault("operator.outputTimeout", "0s")
	v.SetDefault("operator.flushOnClose", true)
	v.SetDefault("operator.originId", 0)
	v.SetDefault("operator.transportLimit", 0)
	v.SetDefault("operator.transportChunk", 0)

	v.SetDefault("checkpoint.store", CheckpointNone)
	v.SetDefault("checkpoint.bucket", "numaslice-checkpoints")
	v.SetDefault("checkpoint.redis.addr", "localhost:6379")
	v.SetDefault("checkpoint.redis.password", "")
	v.SetDefault("checkpoint.redis.db", 0)
	v.SetDefault("checkpoint.jetstream.url", "nats://localhost:4222")
	v.SetDefault("checkpoint.jetstream.user", "")
	v.SetDefault("checkpoint.jetstream.password", "")
	v.SetDefault("checkpoint.jetstream.ttl", "0s")

	v.SetDefault("generator.records", 30)
	v.SetDefault("generator.recordsPerBuffer", 10)
	v.SetDefault("generator.keys", 1)
	v.SetDefault("generator.origins", 1)
	v.SetDefault("generator.startTs", 0)
	v.SetDefault("generator.step", 1)
	v.SetDefault("generator.value", 1)
	v.SetDefault("generator.disorder", 0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", metrics.DefaultMetricsPort)
}

// Load reads the configuration file at path, if any, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file. %w", err)
		}
	}
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the configuration once, before anything is built from it.
func (c *Config) Validate() error {
	if err := c.Window.Spec().Validate(); err != nil {
		return err
	}
	if _, err := c.Window.Function(); err != nil {
		return err
	}
	if _, err := c.Operator.Options(); err != nil {
		return err
	}
	if c.Operator.Workers <= 0 {
		return fmt.Errorf("operator.workers must be positive, got %d", c.Operator.Workers)
	}
	if c.Operator.Capacity <= 0 {
		return fmt.Errorf("operator.capacity must be positive, got %d", c.Operator.Capacity)
	}
	b := c.BufferManager
	if b.BufferSize <= 0 || b.NumberOfBuffers <= 0 || b.OutputBufferSize <= 0 || b.OutputNumberOfBuffers <= 0 {
		return fmt.Errorf("buffer pools must have a positive size and number of buffers")
	}
	switch c.Checkpoint.Store {
	case CheckpointNone, CheckpointInMem, CheckpointRedis, CheckpointJetStream:
	default:
		return fmt.Errorf("unknown checkpoint store %q", c.Checkpoint.Store)
	}
	g := c.Generator
	if g.Records < 0 || g.RecordsPerBuffer <= 0 || g.Keys <= 0 || g.Origins <= 0 || g.Step == 0 {
		return fmt.Errorf("invalid generator configuration %+v", g)
	}
	// generator rows are {ts, key, value}
	if row := 3 * tuple.FieldWidth; g.RecordsPerBuffer*row > b.BufferSize {
		return fmt.Errorf("%d records of %d bytes do not fit a buffer of %d bytes", g.RecordsPerBuffer, row, b.BufferSize)
	}
	return nil
}
