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
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ajroetker/fusedsoftmax/jit/device"
	"github.com/ajroetker/fusedsoftmax/softmax"
)

func newSpecializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specialize N...",
		Short: "Print the tile width, warp count and cache key for column counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cpu := device.NewCPU(device.DefaultCPUConfig())
			defer cpu.Close()
			p := printer()
			out := cmd.OutOrStdout()
			p.Fprintf(out, "%-12s %-10s %-6s %s\n", "cols", "BLOCK", "warps", "key")
			for _, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return errors.Wrapf(err, "column count %q", arg)
				}
				spec, err := softmax.Specialize(n)
				if err != nil {
					return err
				}
				p.Fprintf(out, "%-12d %-10d %-6d %s\n", n, spec.TileWidth, spec.Parallelism, spec.Key(cpu))
			}
			return nil
		},
	}
}
