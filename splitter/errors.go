// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package splitter

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters is matched by every *InvalidParametersError.
var ErrInvalidParameters = errors.New("invalid splitter parameters")

// Constraint names the parameter rule that was violated.
type Constraint string

const (
	// ConstraintMaxSize requires max_size > 0.
	ConstraintMaxSize Constraint = "max_size > 0"
	// ConstraintOverlapNegative requires overlap >= 0.
	ConstraintOverlapNegative Constraint = "overlap >= 0"
	// ConstraintOverlapTooLarge requires overlap < max_size.
	ConstraintOverlapTooLarge Constraint = "overlap < max_size"
)

// InvalidParametersError reports which splitter constraint failed.
type InvalidParametersError struct {
	Constraint Constraint
	MaxSize    int
	Overlap    int
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("%s: %s (max_size=%d, overlap=%d)", ErrInvalidParameters, e.Constraint, e.MaxSize, e.Overlap)
}

// Unwrap lets errors.Is match ErrInvalidParameters.
func (e *InvalidParametersError) Unwrap() error {
	return ErrInvalidParameters
}
