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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	logger      *slog.Logger
	registerer  prometheus.Registerer
	parallelism ParallelismTable
	cache       *KernelCache
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures an Operator or a KernelCache.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers metrics on reg. Without it metrics are
// collected but not exported. A registerer can back one cache and one
// operator; registering a second one panics, as with promauto.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithParallelism replaces DefaultParallelism. Operator only.
func WithParallelism(table ParallelismTable) Option {
	return func(o *options) {
		o.parallelism = table
	}
}

// WithCache makes an Operator use an existing cache, e.g. one shared by
// several operators. Operator only.
func WithCache(cache *KernelCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}
