// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/coopthread/thread"
)

func newVersionCmd() *cobra.Command {
	var require string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := thread.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "coopthread version %s (%s; preemption: %s)\n",
				info.Version, info.Scheduler, info.Preemption)

			if require == "" {
				return nil
			}
			ok, err := thread.Compatible(require)
			if err != nil {
				return fmt.Errorf("--require: %w", err)
			}
			if !ok {
				return fmt.Errorf("version %s does not satisfy %s", thread.Version, require)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "satisfies %s\n", require)
			return nil
		},
	}
	cmd.Flags().StringVar(&require, "require", "", "fail unless this version satisfies the given semantic version")
	return cmd
}
