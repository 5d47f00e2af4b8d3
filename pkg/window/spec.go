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

package window

import (
	"fmt"
)

// Spec is the size and slide of a window.
type Spec struct {
	Size  uint64
	Slide uint64
}

// NewSpec validates and returns a window spec.
func NewSpec(size, slide uint64) (Spec, error) {
	s := Spec{Size: size, Slide: slide}
	return s, s.Validate()
}

// Validate returns an error unless size and slide are both positive.
func (s Spec) Validate() error {
	if s.Size == 0 {
		return fmt.Errorf("invalid window %s: size must be > 0", s)
	}
	if s.Slide == 0 {
		return fmt.Errorf("invalid window %s: slide must be > 0", s)
	}
	return nil
}

// IsTumbling reports whether windows do not overlap and leave no gaps.
func (s Spec) IsTumbling() bool {
	return s.Size == s.Slide
}

func (s Spec) String() string {
	return fmt.Sprintf("{size: %d, slide: %d}", s.Size, s.Slide)
}

// Info identifies one logical window [Start, End).
type Info struct {
	Start uint64
	End   uint64
}

// Contains reports whether the interval [start, end) lies within the window.
func (w Info) Contains(start, end uint64) bool {
	return w.Start <= start && end <= w.End
}

func (w Info) String() string {
	return fmt.Sprintf("[%d, %d)", w.Start, w.End)
}
