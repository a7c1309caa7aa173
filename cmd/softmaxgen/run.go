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

package main

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/fusedsoftmax/jit/device"
	"github.com/ajroetker/fusedsoftmax/softmax"
)

type runFlags struct {
	rows, cols, stride int
	seed               uint64
	concurrency        int
	workers            int
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fused softmax on random input and compare with a float64 reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoftmax(cmd, flags)
		},
	}
	addRunFlags(cmd.Flags(), &flags)
	return cmd
}

func addRunFlags(f *pflag.FlagSet, flags *runFlags) {
	f.IntVar(&flags.rows, "rows", 1823, "number of rows M")
	f.IntVar(&flags.cols, "cols", 781, "number of columns N")
	f.IntVar(&flags.stride, "stride", 0, "row stride in elements; 0 means N")
	f.Uint64Var(&flags.seed, "seed", 1, "random seed for the standard normal input")
	f.IntVar(&flags.concurrency, "concurrency", 1, "concurrent Softmax calls on the same input")
	f.IntVar(&flags.workers, "workers", 0, "CPU worker count; 0 keeps FUSEDSOFTMAX_WORKERS or GOMAXPROCS")
}

func runSoftmax(cmd *cobra.Command, flags runFlags) error {
	if flags.stride == 0 {
		flags.stride = flags.cols
	}
	if flags.rows <= 0 || flags.cols <= 0 || flags.stride < flags.cols {
		return errors.Errorf("invalid shape: rows=%d cols=%d stride=%d", flags.rows, flags.cols, flags.stride)
	}
	if flags.concurrency < 1 {
		return errors.Errorf("--concurrency must be at least 1, got %d", flags.concurrency)
	}

	cfg, err := device.CPUConfigFromEnv()
	if err != nil {
		return err
	}
	if flags.workers > 0 {
		cfg.Workers = flags.workers
	}
	cpu := device.NewCPU(cfg)
	defer cpu.Close()
	slog.Debug("device ready", "id", cpu.ID(), "workers", cpu.Workers(), "memory_limit", cfg.MemoryLimit)

	op, err := softmax.New()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(flags.seed, flags.seed))
	data := make([]float32, (flags.rows-1)*flags.stride+flags.cols)
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	x, err := softmax.Upload(cpu, data, flags.rows, flags.cols, flags.stride)
	if err != nil {
		return err
	}
	defer x.Free()

	results := make([]*softmax.Matrix, flags.concurrency)
	start := time.Now()
	var g errgroup.Group
	for i := range flags.concurrency {
		g.Go(func() error {
			y, err := op.Softmax(x)
			results[i] = y
			return err
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	defer func() {
		for _, y := range results {
			if y != nil {
				_ = y.Free()
			}
		}
	}()
	if err != nil {
		return err
	}

	want := softmax.Reference(data, flags.rows, flags.cols, flags.stride)
	var maxRel, maxSumErr float64
	for _, y := range results {
		got, err := y.Float32s()
		if err != nil {
			return err
		}
		for r := range flags.rows {
			var sum float64
			for c := range flags.cols {
				i := r*flags.cols + c
				maxRel = math.Max(maxRel, math.Abs(float64(got[i])-want[i])/want[i])
				sum += float64(got[i])
			}
			maxSumErr = math.Max(maxSumErr, math.Abs(sum-1))
		}
	}

	spec, _ := softmax.Specialize(flags.cols)
	moved := float64(2*flags.rows*flags.cols*4*flags.concurrency) / 1e9
	p := printer()
	out := cmd.OutOrStdout()
	p.Fprintf(out, "shape:              %d x %d (stride %d)\n", flags.rows, flags.cols, flags.stride)
	p.Fprintf(out, "kernel:             %s\n", spec.Key(cpu))
	p.Fprintf(out, "calls:              %d in %v (%.2f GB/s)\n", flags.concurrency, elapsed, moved/elapsed.Seconds())
	p.Fprintf(out, "max relative error: %.3e\n", maxRel)
	p.Fprintf(out, "max row-sum error:  %.3e\n", maxSumErr)
	p.Fprintf(out, "cached kernels:     %d\n", op.Cache().Len())
	return nil
}
