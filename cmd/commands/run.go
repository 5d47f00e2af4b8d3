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

package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/numaproj/numaslice"
	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/buffer"
	"github.com/numaproj/numaslice/pkg/config"
	"github.com/numaproj/numaslice/pkg/metrics"
	natsclient "github.com/numaproj/numaslice/pkg/shared/clients/nats"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/sinks/logger"
	"github.com/numaproj/numaslice/pkg/sources/generator"
	"github.com/numaproj/numaslice/pkg/window/checkpoint"
	"github.com/numaproj/numaslice/pkg/window/checkpoint/inmem"
	jetstreamkv "github.com/numaproj/numaslice/pkg/window/checkpoint/jetstream"
	rediskv "github.com/numaproj/numaslice/pkg/window/checkpoint/redis"
	"github.com/numaproj/numaslice/pkg/window/operator"
)

// managerDrainTimeout bounds the wait for outstanding buffers when the pools are closed.
const managerDrainTimeout = 5 * time.Second

func NewRunCommand() *cobra.Command {
	var configFile string

	command := &cobra.Command{
		Use:   "run",
		Short: "Run a window operator over generated records and log the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("run")
			log.Infow("Starting window operator", "version", numaslice.GetVersion())
			conf, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(signals.SetupSignalHandler(), log)
			return runPipeline(ctx, conf, cmd.OutOrStdout())
		},
	}
	command.Flags().StringVar(&configFile, "config", "", "Path to a yaml configuration file, environment variables prefixed with "+config.EnvPrefix+" override it")
	return command
}

// runPipeline wires generator, operator and log sink together, runs them until the
// generator is exhausted and writes the summary of the sink to out.
func runPipeline(ctx context.Context, conf *config.Config, out io.Writer) (err error) {
	log := logging.FromContext(ctx)
	id := conf.Operator.ID
	if id == "" {
		id = uuid.NewString()
	}
	log = log.With("operator", id)
	ctx = logging.WithLogger(ctx, log)

	fn, err := conf.Window.Function()
	if err != nil {
		return err
	}
	bm := conf.BufferManager
	input, err := buffer.NewManager(ctx, id+"-input", buffer.WithPool(bm.BufferSize, bm.NumberOfBuffers))
	if err != nil {
		return err
	}
	output, err := buffer.NewManager(ctx, id+"-output",
		buffer.WithPool(bm.OutputBufferSize, bm.OutputNumberOfBuffers),
		buffer.WithUnpooledLimit(bm.UnpooledLimit))
	if err != nil {
		return multierr.Append(err, closeManagers(input))
	}
	defer func() {
		err = multierr.Append(err, closeManagers(input, output))
	}()

	gc := conf.Generator
	gen, err := generator.New(ctx, input,
		generator.WithRecords(gc.Records),
		generator.WithRecordsPerBuffer(gc.RecordsPerBuffer),
		generator.WithKeys(gc.Keys),
		generator.WithOrigins(gc.Origins),
		generator.WithTimestamps(gc.StartTs, gc.Step),
		generator.WithValue(gc.Value),
		generator.WithDisorder(gc.Disorder),
		generator.WithValueType(fn.InputType()))
	if err != nil {
		return err
	}
	sink, err := logger.NewToLog(id, fn.OutputType(), logger.WithLogger(log))
	if err != nil {
		return err
	}
	// syncing a stdout logger fails on some platforms
	defer func() { _ = sink.Close() }()

	opts, err := conf.Operator.Options()
	if err != nil {
		return err
	}
	key := ""
	if conf.Window.Keyed {
		key = generator.ColKey
	}
	opts = append(opts, operator.WithFields(generator.ColTimestamp, key, generator.ColValue))
	checkpointer, closeStore, err := newCheckpointer(ctx, conf.Checkpoint, id, fn)
	if err != nil {
		return err
	}
	defer closeStore()
	if checkpointer != nil {
		opts = append(opts, operator.WithCheckpointer(checkpointer))
	}

	op, err := operator.New(ctx, id, conf.Window.Spec(), fn, gen.Schema(), gen.Origins(), output, sink, opts...)
	if err != nil {
		return err
	}

	if conf.Metrics.Enabled {
		ms := metrics.NewMetricsServer(metrics.WithPort(conf.Metrics.Port), metrics.WithHealthCheckers(ctx, op))
		shutdown, err := ms.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start the metrics server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), managerDrainTimeout)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}
	v := numaslice.GetVersion()
	metrics.BuildInfo.WithLabelValues("operator", v.Version, v.Platform).Set(1)

	in := make(chan *buffer.Buffer, bm.NumberOfBuffers)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gen.Run(gctx, in)
	})
	g.Go(func() error {
		return op.Run(gctx, in)
	})
	err = g.Wait()
	// the generator closed in; whatever the operator did not take goes back to the pool
	for b := range in {
		b.Release()
	}
	if err != nil {
		return fmt.Errorf("operator %s failed: %w", id, err)
	}

	summary, err := sink.Summary()
	if err != nil {
		return err
	}
	log.Infow("Window operator finished", zap.Int("windows", summary.Windows), zap.Int("rows", summary.Rows), zap.Uint64("watermark", op.Watermark()))
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func closeManagers(managers ...*buffer.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), managerDrainTimeout)
	defer cancel()
	var err error
	for _, m := range managers {
		err = multierr.Append(err, m.Close(ctx))
	}
	return err
}

// newCheckpointer builds the checkpoint store named by conf. The returned function closes
// the store and any client it holds.
func newCheckpointer(ctx context.Context, conf config.CheckpointConfig, id string, fn *aggregation.Function) (*checkpoint.Checkpointer, func(), error) {
	var (
		store checkpoint.KVStorer
		err   error
	)
	cleanup := func() {}
	switch conf.Store {
	case config.CheckpointNone:
		return nil, cleanup, nil
	case config.CheckpointInMem:
		store, err = inmem.NewKVInMemKVStore(ctx, conf.Bucket)
	case config.CheckpointRedis:
		client := rediskv.NewRedisClient(&redis.UniversalOptions{
			Addrs:    []string{conf.Redis.Addr},
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		store, err = rediskv.NewKVRedisStore(ctx, conf.Bucket, client)
		if err != nil {
			_ = client.Close()
		}
	case config.CheckpointJetStream:
		var client *natsclient.Client
		client, err = natsclient.NewNATSClient(ctx, conf.JetStream.URL, natsclient.Auth{User: conf.JetStream.User, Password: conf.JetStream.Password})
		if err != nil {
			return nil, cleanup, err
		}
		js, jerr := client.JetStreamContext()
		if jerr != nil {
			client.Close()
			return nil, cleanup, jerr
		}
		store, err = jetstreamkv.NewKVJetStreamKVStore(ctx, conf.Bucket, js, jetstreamkv.WithTTL(conf.JetStream.TTL))
		if err != nil {
			client.Close()
		} else {
			cleanup = client.Close
		}
	default:
		return nil, cleanup, fmt.Errorf("unknown checkpoint store %q", conf.Store)
	}
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create the %s checkpoint store: %w", conf.Store, err)
	}
	closeStore := func() {
		store.Close()
		cleanup()
	}
	c, err := checkpoint.New(ctx, store, id, fn)
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}
	return c, closeStore, nil
}
