package ruleselect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape for a rule set, mirroring registry.seedFile's
// afs-backed YAML fixture convention.
type ruleFile struct {
	Rules []struct {
		Name        string   `yaml:"name"`
		Keywords    []string `yaml:"keywords,omitempty"`
		Regex       string   `yaml:"regex,omitempty"`
		FunctionIDs []string `yaml:"function_ids"`
		Confidence  float64  `yaml:"confidence"`
	} `yaml:"rules"`
}

// LoadRules reads a YAML rule set from an afs-addressable location and
// compiles any regex-backed rules, matching the teacher's afs-backed
// workspace loader idiom (internal/workspace/repository/base.Repository.Load).
func LoadRules(ctx context.Context, fs afs.Service, url string) ([]Rule, error) {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ruleselect: read rule set %s: %w", url, err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ruleselect: parse rule set %s: %w", url, err)
	}
	rules := make([]Rule, 0, len(file.Rules))
	for _, r := range file.Rules {
		rule := Rule{Name: r.Name, Keywords: r.Keywords, FunctionIDs: r.FunctionIDs, Confidence: r.Confidence}
		if r.Regex != "" {
			re, err := regexp.Compile(r.Regex)
			if err != nil {
				return nil, fmt.Errorf("ruleselect: rule %s: compile regex: %w", r.Name, err)
			}
			rule.Regex = re
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
