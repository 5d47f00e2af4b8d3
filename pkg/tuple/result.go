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

package tuple

// Names of the columns of a window result row.
const (
	ColWindowStart = "window_start"
	ColWindowEnd   = "window_end"
	ColKey         = "key"
	ColValue       = "value"
)

// ResultSchema is the row format of emitted window results.
func ResultSchema(valueType DataType) *Schema {
	return MustNewSchema(
		Column{Name: ColWindowStart, Type: UInt64},
		Column{Name: ColWindowEnd, Type: UInt64},
		Column{Name: ColKey, Type: UInt64},
		Column{Name: ColValue, Type: valueType},
	)
}
