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

package watermark

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_SequenceGaps(t *testing.T) {
	p, err := NewProcessor(context.Background(), t.Name(), []uint64{1})
	require.NoError(t, err)

	w, advanced, err := p.Update(1, 2, 20)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Zero(t, w)
	assert.Equal(t, 1, p.Pending(1))

	_, advanced, _ = p.Update(1, 3, 30)
	assert.False(t, advanced)

	// closing the gap releases the whole prefix
	w, advanced, err = p.Update(1, 1, 10)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(30), w)
	assert.Equal(t, uint64(30), p.Current())
	assert.Zero(t, p.Pending(1))

	// duplicates and stale sequence numbers are ignored
	_, advanced, _ = p.Update(1, 2, 99)
	assert.False(t, advanced)
	assert.Equal(t, uint64(30), p.Current())

	// a lower watermark does not move it back
	_, advanced, _ = p.Update(1, 4, 25)
	assert.False(t, advanced)
	ow, ok := p.OriginWatermark(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(30), ow)
}

func TestProcessor_MinimumOverOrigins(t *testing.T) {
	p, err := NewProcessor(context.Background(), t.Name(), []uint64{1, 2})
	require.NoError(t, err)
	_, advanced, _ := p.Update(1, 1, 50)
	assert.False(t, advanced)
	assert.Zero(t, p.Current())

	w, advanced, _ := p.Update(2, 1, 20)
	assert.True(t, advanced)
	assert.Equal(t, uint64(20), w)

	w, advanced, _ = p.Update(2, 2, 70)
	assert.True(t, advanced)
	assert.Equal(t, uint64(50), w)

	_, _, err = p.Update(3, 1, 100)
	assert.ErrorIs(t, err, ErrUnknownOrigin)
	_, ok := p.OriginWatermark(3)
	assert.False(t, ok)
}

func TestNewProcessor_Invalid(t *testing.T) {
	_, err := NewProcessor(context.Background(), t.Name(), nil)
	assert.Error(t, err)
	_, err = NewProcessor(context.Background(), t.Name(), []uint64{1, 1})
	assert.Error(t, err)
}

func TestProcessor_Concurrent(t *testing.T) {
	p, err := NewProcessor(context.Background(), t.Name(), []uint64{1, 2})
	require.NoError(t, err)
	var wg sync.WaitGroup
	for origin := uint64(1); origin <= 2; origin++ {
		for worker := uint64(0); worker < 4; worker++ {
			wg.Add(1)
			go func(origin, worker uint64) {
				defer wg.Done()
				for seq := 1 + worker; seq <= 1000; seq += 4 {
					_, _, err := p.Update(origin, seq, seq*10)
					assert.NoError(t, err)
				}
			}(origin, worker)
		}
	}
	wg.Wait()
	assert.Equal(t, uint64(10000), p.Current())
	assert.Zero(t, p.Pending(1))
	assert.Zero(t, p.Pending(2))
}
