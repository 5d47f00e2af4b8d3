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

package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numaslice/pkg/metrics"
)

// availableBuffers is the number of pooled buffers currently free.
var availableBuffers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "buffer",
	Name:      "available_pooled",
	Help:      "Number of free pooled buffers",
}, []string{metrics.LabelPool})

// acquireTimeouts counts pooled acquisitions that gave up.
var acquireTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "buffer",
	Name:      "acquire_timeout_total",
	Help:      "Total number of pooled buffer acquisitions that timed out or found the pool empty",
}, []string{metrics.LabelPool})

// unpooledBytes is the capacity held by unpooled buffers, free or in use.
var unpooledBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "buffer",
	Name:      "unpooled_bytes",
	Help:      "Bytes allocated for unpooled buffers",
}, []string{metrics.LabelPool})

// unpooledAllocations counts fresh unpooled allocations, reuses are not counted.
var unpooledAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "buffer",
	Name:      "unpooled_allocations_total",
	Help:      "Total number of unpooled buffers allocated",
}, []string{metrics.LabelPool})
