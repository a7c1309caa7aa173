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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type cacheMetrics struct {
	lookups       *prometheus.CounterVec
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	f := promauto.With(reg)
	return &cacheMetrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "softmax_kernel_cache_lookups_total",
			Help: "Kernel cache lookups by result (hit, miss)",
		}, []string{"result"}),
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "softmax_kernel_builds_total",
			Help: "Kernel builds by status (ok, error)",
		}, []string{"status"}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "softmax_kernel_build_duration_seconds",
			Help:    "Time to generate and compile one kernel",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

type launchMetrics struct {
	launches       *prometheus.CounterVec
	rows           prometheus.Counter
	launchDuration prometheus.Histogram
}

func newLaunchMetrics(reg prometheus.Registerer) *launchMetrics {
	f := promauto.With(reg)
	return &launchMetrics{
		launches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "softmax_launches_total",
			Help: "Softmax calls by status (ok, error)",
		}, []string{"status"}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Name: "softmax_rows_total",
			Help: "Rows normalized by successful calls",
		}),
		launchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "softmax_launch_duration_seconds",
			Help:    "End-to-end Softmax call latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
