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

package operator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numaslice/pkg/metrics"
)

// recordsProcessed counts records lifted into worker stores.
var recordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "operator",
	Name:      "records_processed_total",
	Help:      "Total number of records processed",
}, []string{metrics.LabelOperator, metrics.LabelWorker})

// lateRecords counts records below the floor of a worker store.
var lateRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "operator",
	Name:      "late_records_total",
	Help:      "Total number of late records",
}, []string{metrics.LabelOperator, metrics.LabelReason})

// flushes counts worker publications.
var flushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "operator",
	Name:      "flushes_total",
	Help:      "Total number of flushes of a worker store",
}, []string{metrics.LabelOperator, metrics.LabelWorker})

// spilledSlices counts slices published early because a worker ring was full.
var spilledSlices = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "operator",
	Name:      "spilled_slices_total",
	Help:      "Total number of slices published before their watermark because the ring was full",
}, []string{metrics.LabelOperator})

// openSlices is the number of open slices of a worker store.
var openSlices = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "operator",
	Name:      "open_slices",
	Help:      "Number of open slices of a worker store",
}, []string{metrics.LabelOperator, metrics.LabelWorker})

// bufferProcessingTime is the time to lift the records of one input buffer.
var bufferProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "operator",
	Name:      "buffer_processing_time",
	Help:      "Processing times of an input buffer (100 microseconds to 10 seconds)",
	Buckets:   prometheus.ExponentialBucketsRange(100, 10000000, 10),
}, []string{metrics.LabelOperator})
