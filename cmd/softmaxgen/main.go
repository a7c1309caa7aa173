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

// Command softmaxgen inspects and exercises the fused softmax kernels.
//
// Usage:
//
//	softmaxgen specialize 5 781 2049      # tile width, warps and cache key per width
//	softmaxgen emit --cols 781            # kernel source specialized for 781 columns
//	softmaxgen run --rows 1823 --cols 781 # run on random input and check accuracy
//
// The CPU device honours FUSEDSOFTMAX_WORKERS, FUSEDSOFTMAX_MEMORY_LIMIT,
// FUSEDSOFTMAX_MAX_TILE_WIDTH and HWY_NO_SIMD.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "softmaxgen",
		Short:         "Inspect and run shape-specialized softmax kernels",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(flags.logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(newSpecializeCmd(), newEmitCmd(), newRunCmd())
	return root
}

// printer formats counts with thousands separators.
func printer() *message.Printer {
	return message.NewPrinter(language.English)
}
