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

// Package buffer manages the memory records travel in. A Manager owns a fixed pool of
// equally sized buffers plus a free list of variable sized unpooled buffers for payloads
// that do not fit the pool. Buffers are handed out as reference counted handles and go
// back to the manager when the last handle is released.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numaslice/pkg/shared/logging"
)

// Manager hands out pooled and unpooled buffers.
type Manager struct {
	name string
	opts *options
	log  *zap.SugaredLogger

	mu         sync.RWMutex
	configured bool
	closed     bool
	bufferSize int
	pooled     []*segment
	// free holds every pooled segment with no references; its capacity equals the pool size
	free       chan *segment

	unpooledMu    sync.Mutex
	unpooled      []*segment
	// unpooledFree is sorted by capacity
	unpooledFree  []*segment
	unpooledBytes int
}

// NewManager creates a manager. The pool is configured right away if WithPool is passed.
func NewManager(ctx context.Context, name string, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	m := &Manager{
		name: name,
		opts: o,
		log:  logging.FromContext(ctx).With("pool", name),
	}
	if o.numberOfBuffers > 0 {
		if err := m.Configure(o.bufferSize, o.numberOfBuffers); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Configure allocates the pool. It can be called only once.
func (m *Manager) Configure(bufferSize, numberOfBuffers int) error {
	if bufferSize <= 0 || numberOfBuffers <= 0 {
		return fmt.Errorf("invalid pool %d x %d bytes", numberOfBuffers, bufferSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configured {
		return ErrAlreadyConfigured
	}
	// one contiguous allocation, every segment is a window into it
	arena := make([]byte, bufferSize*numberOfBuffers)
	m.pooled = make([]*segment, numberOfBuffers)
	m.free = make(chan *segment, numberOfBuffers)
	for i := 0; i < numberOfBuffers; i++ {
		s := &segment{
			id:      i,
			pooled:  true,
			data:    arena[i*bufferSize : (i+1)*bufferSize : (i+1)*bufferSize],
			refs:    atomicZero(),
			manager: m,
		}
		m.pooled[i] = s
		m.free <- s
	}
	m.bufferSize = bufferSize
	m.configured = true
	availableBuffers.WithLabelValues(m.name).Set(float64(numberOfBuffers))
	m.log.Infow("Configured buffer pool", zap.Int("bufferSize", bufferSize), zap.Int("numberOfBuffers", numberOfBuffers))
	return nil
}

func (m *Manager) freeList() (chan *segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if !m.configured {
		return nil, ErrNotConfigured
	}
	return m.free, nil
}

// take hands out a segment received from the free list. A waiter that was blocked when
// Close ran puts the segment back and gets ErrClosed.
func (m *Manager) take(s *segment) (*Buffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.free <- s
		return nil, ErrClosed
	}
	if !s.refs.CompareAndSwap(0, 1) {
		panic(fmt.Sprintf("buffer: %s handed out with live references", s))
	}
	availableBuffers.WithLabelValues(m.name).Dec()
	return newHandle(s), nil
}

// GetBufferBlocking waits until a pooled buffer is free or ctx is done.
func (m *Manager) GetBufferBlocking(ctx context.Context) (*Buffer, error) {
	free, err := m.freeList()
	if err != nil {
		return nil, err
	}
	select {
	case s := <-free:
		return m.take(s)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetBufferNoBlocking returns a pooled buffer if one is free right now.
func (m *Manager) GetBufferNoBlocking() (*Buffer, bool) {
	free, err := m.freeList()
	if err != nil {
		return nil, false
	}
	select {
	case s := <-free:
		b, err := m.take(s)
		return b, err == nil
	default:
		acquireTimeouts.WithLabelValues(m.name).Inc()
		return nil, false
	}
}

// GetBufferTimeout waits at most d for a pooled buffer. No buffer is not an error.
func (m *Manager) GetBufferTimeout(d time.Duration) (*Buffer, bool) {
	free, err := m.freeList()
	if err != nil {
		return nil, false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case s := <-free:
		b, err := m.take(s)
		return b, err == nil
	case <-timer.C:
		acquireTimeouts.WithLabelValues(m.name).Inc()
		return nil, false
	}
}

// GetUnpooledBuffer returns a buffer of at least size bytes outside the pool. A released
// unpooled buffer is reused when it is large enough; the smallest such buffer wins.
func (m *Manager) GetUnpooledBuffer(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid unpooled size %d", size)
	}
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	m.unpooledMu.Lock()
	defer m.unpooledMu.Unlock()
	i := sort.Search(len(m.unpooledFree), func(i int) bool {
		return len(m.unpooledFree[i].data) >= size
	})
	if i < len(m.unpooledFree) {
		s := m.unpooledFree[i]
		m.unpooledFree = append(m.unpooledFree[:i], m.unpooledFree[i+1:]...)
		s.refs.Store(1)
		return newHandle(s), nil
	}
	if m.opts.unpooledLimit > 0 && m.unpooledBytes+size > m.opts.unpooledLimit {
		return nil, fmt.Errorf("%w: %d + %d > %d bytes", ErrUnpooledLimit, m.unpooledBytes, size, m.opts.unpooledLimit)
	}
	s := &segment{
		id:      len(m.unpooled),
		data:    make([]byte, size),
		refs:    atomicZero(),
		manager: m,
	}
	s.refs.Store(1)
	m.unpooled = append(m.unpooled, s)
	m.unpooledBytes += size
	unpooledBytes.WithLabelValues(m.name).Set(float64(m.unpooledBytes))
	unpooledAllocations.WithLabelValues(m.name).Inc()
	return newHandle(s), nil
}

func (m *Manager) recycle(s *segment) {
	if n := s.refs.Load(); n != 0 {
		panic(fmt.Sprintf("buffer: recycling %s with %d references", s, n))
	}
	s.resetMetadata()
	if s.pooled {
		select {
		case m.free <- s:
			availableBuffers.WithLabelValues(m.name).Inc()
		default:
			panic(fmt.Sprintf("buffer: pool %s overflow recycling %s", m.name, s))
		}
		return
	}
	m.unpooledMu.Lock()
	defer m.unpooledMu.Unlock()
	i := sort.Search(len(m.unpooledFree), func(i int) bool {
		return len(m.unpooledFree[i].data) >= len(s.data)
	})
	m.unpooledFree = append(m.unpooledFree, nil)
	copy(m.unpooledFree[i+1:], m.unpooledFree[i:])
	m.unpooledFree[i] = s
}

// BufferSize returns the size of a pooled buffer, 0 before Configure.
func (m *Manager) BufferSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bufferSize
}

// NumberOfPooledBuffers returns the pool size, 0 before Configure.
func (m *Manager) NumberOfPooledBuffers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pooled)
}

// AvailableBuffers returns the number of free pooled buffers.
func (m *Manager) AvailableBuffers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.free)
}

// UnpooledBytes returns the capacity allocated for unpooled buffers.
func (m *Manager) UnpooledBytes() int {
	m.unpooledMu.Lock()
	defer m.unpooledMu.Unlock()
	return m.unpooledBytes
}

func (m *Manager) outstanding() int {
	m.mu.RLock()
	n := len(m.pooled) - len(m.free)
	m.mu.RUnlock()
	m.unpooledMu.Lock()
	defer m.unpooledMu.Unlock()
	for _, s := range m.unpooled {
		if s.refs.Load() != 0 {
			n++
		}
	}
	return n
}

// Close stops handing out buffers and waits until every buffer is back. If ctx expires
// first, the returned error wraps ErrBufferLeak and names every leaked segment.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := wait.PollUntilContextCancel(ctx, m.opts.drainInterval, true, func(context.Context) (bool, error) {
		return m.outstanding() == 0, nil
	})
	if err == nil {
		m.log.Info("All buffers returned, buffer manager closed")
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	leaks := ErrBufferLeak
	for _, s := range m.pooled {
		if n := s.refs.Load(); n != 0 {
			leaks = multierr.Append(leaks, fmt.Errorf("%s has %d references", s, n))
		}
	}
	m.unpooledMu.Lock()
	for _, s := range m.unpooled {
		if n := s.refs.Load(); n != 0 {
			leaks = multierr.Append(leaks, fmt.Errorf("%s has %d references", s, n))
		}
	}
	m.unpooledMu.Unlock()
	m.log.Errorw("Buffer manager closed with outstanding buffers", zap.Error(leaks))
	return leaks
}
