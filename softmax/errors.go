// Copyright 2025 go-highway Authors
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

package softmax

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for malformed matrices: nil buffers,
	// wrong rank or dtype, non-unit column stride, row stride smaller than
	// the row, or a buffer too short for the described shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidShape is returned when a column count cannot be
	// specialized: zero columns or more than MaxColumns.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrKernelBuild is returned when generating or compiling a kernel
	// failed. Nothing is cached; a later call retries the build.
	ErrKernelBuild = errors.New("kernel build failed")

	// ErrResourceExhausted is returned when the output cannot be allocated.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// BuildError reports a failed kernel build for one specialization key.
// It matches both ErrKernelBuild and the underlying cause with errors.Is.
type BuildError struct {
	Key Key
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%v for %s: %v", ErrKernelBuild, e.Key, e.Err)
}

// Unwrap returns ErrKernelBuild and the cause.
func (e *BuildError) Unwrap() []error {
	return []error{ErrKernelBuild, e.Err}
}
