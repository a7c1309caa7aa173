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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajroetker/fusedsoftmax/jit/ir"
	"github.com/ajroetker/fusedsoftmax/softmax"
)

func newEmitCmd() *cobra.Command {
	var cols int
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Print the kernel source specialized for a column count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := softmax.Specialize(cols)
			if err != nil {
				return err
			}
			fn, err := ir.BuildSoftmax(spec.TileWidth)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "// cols=%d num_warps=%d\n%s", cols, spec.Parallelism, ir.Emit(fn))
			return nil
		},
	}
	cmd.Flags().IntVar(&cols, "cols", 0, "number of columns N (required)")
	_ = cmd.MarkFlagRequired("cols")
	return cmd
}
