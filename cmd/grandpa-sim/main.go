// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grandpa-sim",
	Short: "GRANDPA finality gadget simulation and inspection tools",
	Long: `grandpa-sim drives an in-memory multi-voter GRANDPA simulation and
inspects or verifies justifications produced by a real deployment.`,
}

func main() {
	rootCmd.AddCommand(
		runCmd(),
		verifyCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
