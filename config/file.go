// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/grandpa/vote"
)

// fileVoter is the YAML-facing shape of one voter-set entry.
type fileVoter struct {
	PublicKey string `yaml:"public_key"`
	Weight    uint64 `yaml:"weight"`
}

// File is the on-disk YAML shape for a GRANDPA deployment: a plain
// struct with yaml tags, loaded with yaml.Unmarshal.
type File struct {
	DurationMillis int64       `yaml:"duration_ms"`
	SetID          uint64      `yaml:"set_id"`
	Voters         []fileVoter `yaml:"voters"`
	PrivateKeyHex  string      `yaml:"private_key,omitempty"`
}

// LoadFile reads a YAML deployment file and produces a Config. A
// missing private_key yields a Config with no Keypair, suitable for an
// observer node.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("grandpa/config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("grandpa/config: parse %s: %w", path, err)
	}
	return fromFile(f)
}

func fromFile(f File) (Config, error) {
	voters := make([]vote.Voter, 0, len(f.Voters))
	for i, v := range f.Voters {
		raw, err := hex.DecodeString(v.PublicKey)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return Config{}, fmt.Errorf("grandpa/config: voter %d: invalid public_key", i)
		}
		var id vote.VoterID
		copy(id[:], raw)
		voters = append(voters, vote.Voter{ID: id, Weight: v.Weight})
	}

	cfg := Config{
		Duration: time.Duration(f.DurationMillis) * time.Millisecond,
		Voters:   vote.NewVoterSet(voters),
		SetID:    vote.SetID(f.SetID),
	}

	if f.PrivateKeyHex != "" {
		raw, err := hex.DecodeString(f.PrivateKeyHex)
		if err != nil || len(raw) != ed25519.PrivateKeySize {
			return Config{}, fmt.Errorf("grandpa/config: invalid private_key")
		}
		priv := ed25519.PrivateKey(raw)
		kp := vote.Keypair{Public: priv.Public().(ed25519.PublicKey), Private: priv}
		cfg.Keypair = &kp
	}

	cfg = withDefaults(cfg)
	if err := cfg.Valid(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
