// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/justification"
)

func verifyCmd() *cobra.Command {
	var votersPath string
	cmd := &cobra.Command{
		Use:   "verify <justification-hex-file>",
		Short: "Decode and verify a GRANDPA justification against a voter-set config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], votersPath)
		},
	}
	cmd.Flags().StringVar(&votersPath, "voters", "", "path to a YAML voter-set config file (required)")
	cmd.MarkFlagRequired("voters")
	return cmd
}

func runVerify(path, votersPath string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading justification file: %w", err)
	}
	encoded, err := hex.DecodeString(string(trimNewline(raw)))
	if err != nil {
		return fmt.Errorf("decoding justification hex: %w", err)
	}

	j, err := justification.Decode(encoded)
	if err != nil {
		return fmt.Errorf("decoding justification: %w", err)
	}

	cfg, err := config.LoadFile(votersPath)
	if err != nil {
		return fmt.Errorf("loading voter set: %w", err)
	}

	if err := justification.Verify(j, cfg.Voters); err != nil {
		return fmt.Errorf("justification invalid: %w", err)
	}

	fmt.Printf("justification valid: round=%d set=%d target=%s precommits=%d\n",
		uint64(j.Round), uint64(j.Set), j.Target, len(j.Precommits))
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
