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

package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/window"
	"github.com/numaproj/numaslice/pkg/window/serde"
)

// Checkpointer saves and restores the slices of one operator.
type Checkpointer struct {
	store      KVStorer
	operatorID string
	fn         *aggregation.Function
	log        *zap.SugaredLogger
}

// New returns a checkpointer writing to store under the given operator id.
func New(ctx context.Context, store KVStorer, operatorID string, fn *aggregation.Function) (*Checkpointer, error) {
	if operatorID == "" || strings.ContainsAny(operatorID, "/ ") {
		return nil, fmt.Errorf("invalid operator id %q", operatorID)
	}
	return &Checkpointer{
		store:      store,
		operatorID: operatorID,
		fn:         fn,
		log:        logging.FromContext(ctx).With("operatorID", operatorID, "checkpointStore", store.GetStoreName()),
	}, nil
}

// progressKey is the key suffix the emitted watermark of an operator is stored under.
const progressKey = "emitted"

// Key returns the key a slice of the operator is stored under.
func Key(operatorID string, start, end uint64) string {
	return fmt.Sprintf("%s/%d-%d", operatorID, start, end)
}

// ParseKey splits a key into the operator id and the slice bounds.
func ParseKey(key string) (string, window.Info, error) {
	id, bounds, ok := strings.Cut(key, "/")
	if !ok {
		return "", window.Info{}, fmt.Errorf("invalid checkpoint key %q", key)
	}
	s, e, ok := strings.Cut(bounds, "-")
	if !ok {
		return "", window.Info{}, fmt.Errorf("invalid checkpoint key %q", key)
	}
	start, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", window.Info{}, fmt.Errorf("invalid checkpoint key %q: %w", key, err)
	}
	end, err := strconv.ParseUint(e, 10, 64)
	if err != nil {
		return "", window.Info{}, fmt.Errorf("invalid checkpoint key %q: %w", key, err)
	}
	return id, window.Info{Start: start, End: end}, nil
}

// Save writes every slice, replacing earlier checkpoints of the same slice.
func (c *Checkpointer) Save(ctx context.Context, slices []*window.Slice) error {
	var errs error
	for _, s := range slices {
		data, err := serde.Encode(s)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to encode %s: %w", s, err))
			continue
		}
		if err := c.store.PutKV(ctx, Key(c.operatorID, s.Start(), s.End()), data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to checkpoint %s: %w", s, err))
		}
	}
	if errs == nil {
		checkpointedSlices.WithLabelValues(c.operatorID).Add(float64(len(slices)))
	}
	return errs
}

// Remove deletes the checkpoints of the given slices. Missing keys are not an error.
func (c *Checkpointer) Remove(ctx context.Context, windows []window.Info) error {
	var errs error
	for _, w := range windows {
		if err := c.store.DeleteKey(ctx, Key(c.operatorID, w.Start, w.End)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to delete checkpoint of %s: %w", w, err))
		}
	}
	return errs
}

func (c *Checkpointer) keys(ctx context.Context) ([]string, error) {
	all, err := c.store.GetAllKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	prefix := c.operatorID + "/"
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, prefix) && k != c.progress() {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *Checkpointer) progress() string {
	return c.operatorID + "/" + progressKey
}

// SaveProgress records that every window ending at or before watermark was emitted.
func (c *Checkpointer) SaveProgress(ctx context.Context, watermark uint64) error {
	if err := c.store.PutKV(ctx, c.progress(), []byte(strconv.FormatUint(watermark, 10))); err != nil {
		return fmt.Errorf("failed to checkpoint the emitted watermark %d: %w", watermark, err)
	}
	return nil
}

// RestoreProgress returns the emitted watermark saved by SaveProgress. The bool is false
// when the operator never saved one.
func (c *Checkpointer) RestoreProgress(ctx context.Context) (uint64, bool, error) {
	data, err := c.store.GetValue(ctx, c.progress())
	if errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read the emitted watermark: %w", err)
	}
	w, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid emitted watermark %q: %w", data, err)
	}
	return w, true, nil
}

// Restore reads every checkpointed slice of the operator, ordered by start.
func (c *Checkpointer) Restore(ctx context.Context) ([]*window.Slice, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	slices := make([]*window.Slice, 0, len(keys))
	for _, k := range keys {
		_, bounds, err := ParseKey(k)
		if err != nil {
			return nil, err
		}
		data, err := c.store.GetValue(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint %s: %w", k, err)
		}
		s, err := serde.Decode(bytes.NewReader(data), c.fn)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", k, err)
		}
		if s.Start() != bounds.Start || s.End() != bounds.End {
			return nil, fmt.Errorf("checkpoint %s holds slice [%d, %d)", k, s.Start(), s.End())
		}
		slices = append(slices, s)
	}
	sortByStart(slices)
	c.log.Infow("Restored slices from checkpoint", zap.Int("slices", len(slices)))
	return slices, nil
}

// Clear deletes every checkpoint of the operator, the emitted watermark included.
func (c *Checkpointer) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	errs := c.store.DeleteKey(ctx, c.progress())
	for _, k := range keys {
		errs = multierr.Append(errs, c.store.DeleteKey(ctx, k))
	}
	return errs
}
