// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const maxRulesFileSize = 1 * 1024 * 1024

// RuleFile is the on-disk rule set. Rules keep file order, which is evaluation order.
type RuleFile struct {
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Rules    []Rule `yaml:"rules" json:"rules"`
}

// LoadRuleFile reads and parses a YAML rule file without compiling it.
func LoadRuleFile(path string) (*RuleFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("rules file %s is a directory", path)
	}
	if info.Size() > maxRulesFileSize {
		return nil, fmt.Errorf("rules file %s too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return &rf, nil
}

// LoadFile builds a classifier from a YAML rule file. fallback applies when the file
// does not name its own fallback agent.
func LoadFile(path, fallback string) (*Classifier, error) {
	rf, err := LoadRuleFile(path)
	if err != nil {
		return nil, err
	}
	if rf.Fallback != "" {
		fallback = rf.Fallback
	}
	c, err := New(rf.Rules, fallback)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return c, nil
}
