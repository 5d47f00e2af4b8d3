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

// Package window implements windowing constructs. In the world of data processing on an unbounded stream, Windowing
// is a concept of grouping data using temporal boundaries. Event time is used to discover the boundaries and the
// watermark to decide when the data within a boundary is complete.
//
// Windows are tumbling (size == slide) or sliding (size != slide). Rather than keeping one aggregate per window,
// the stream is cut into slices: maximal intervals that never straddle the start or the end of any window. Every
// record updates exactly one slice, and a window is assembled by combining the partial aggregates of the slices it
// covers. A slice may contribute to zero, one or several windows.
//
// All times are non-negative integers in a single unit (milliseconds in the runtime); intervals are half-open.
package window
