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

// Package aggregation implements the incremental aggregation functions windows are computed
// with. A function is chosen once, when an operator is built, and then operates on opaque
// fixed-size state blocks whose layout is described by a Layout.
package aggregation

import (
	"fmt"
	"strings"
)

// Kind is the closed set of supported aggregations.
type Kind int

const (
	Sum Kind = iota
	Count
	Min
	Max
	Avg
)

func (k Kind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Count:
		return "count"
	case Min:
		return "min"
	case Max:
		return "max"
	case Avg:
		return "avg"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the name of an aggregation.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "sum":
		return Sum, nil
	case "count":
		return Count, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "avg", "average", "mean":
		return Avg, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", s)
	}
}
