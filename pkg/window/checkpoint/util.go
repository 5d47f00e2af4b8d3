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
	"sort"

	"github.com/numaproj/numaslice/pkg/window"
)

// sortByStart orders slices by start then end. Keys sort as strings, which is not the
// numeric order of the bounds.
func sortByStart(slices []*window.Slice) {
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Start() != slices[j].Start() {
			return slices[i].Start() < slices[j].Start()
		}
		return slices[i].End() < slices[j].End()
	})
}
