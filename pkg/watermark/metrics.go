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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numaslice/pkg/metrics"
)

// currentWatermark is the combined watermark of a processor.
var currentWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "watermark",
	Name:      "current",
	Help:      "Minimum watermark over all origins of a processor",
}, []string{metrics.LabelOperator})

// pendingSequences is the number of out-of-order buffers waiting for a sequence gap to close.
var pendingSequences = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "watermark",
	Name:      "pending_sequences",
	Help:      "Number of sequence numbers held back by a gap",
}, []string{metrics.LabelOperator, metrics.LabelOrigin})
