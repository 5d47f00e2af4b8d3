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

package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numaslice/pkg/metrics"
)

// windowsEmitted counts emitted window results.
var windowsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "trigger",
	Name:      "windows_emitted_total",
	Help:      "Total number of windows emitted",
}, []string{metrics.LabelOperator})

// publicationsMerged counts worker publications folded into the global state.
var publicationsMerged = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "trigger",
	Name:      "publications_total",
	Help:      "Total number of worker publications merged",
}, []string{metrics.LabelOperator})

// globalSlices is the number of slices waiting for their last window.
var globalSlices = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "trigger",
	Name:      "global_slices",
	Help:      "Number of merged slices not yet evicted",
}, []string{metrics.LabelOperator})

// completeWatermark is the watermark every worker has published.
var completeWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "trigger",
	Name:      "complete_watermark",
	Help:      "Minimum watermark published by all workers",
}, []string{metrics.LabelOperator})

// mergeProcessingTime is the time to merge one publication, including emission.
var mergeProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "trigger",
	Name:      "merge_processing_time",
	Help:      "Processing times of merging a publication (100 microseconds to 10 seconds)",
	Buckets:   prometheus.ExponentialBucketsRange(100, 10000000, 10),
}, []string{metrics.LabelOperator})

// outputBackpressure counts emissions that gave up waiting for an output buffer.
var outputBackpressure = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "trigger",
	Name:      "output_backpressure_total",
	Help:      "Total number of times no output buffer could be acquired in time",
}, []string{metrics.LabelOperator})
