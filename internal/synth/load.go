package synth

import (
	"context"
	"fmt"
	"regexp"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk shape for a template set, mirroring
// ruleselect's and registry's afs-backed YAML fixture convention.
type templateFile struct {
	Templates []struct {
		Name       string            `yaml:"name"`
		Patterns   []string          `yaml:"patterns"`
		Parameters map[string]string `yaml:"parameters"`
	} `yaml:"templates"`
}

// LoadTemplates reads a YAML template set from an afs-addressable location
// and compiles each pattern, matching the teacher's afs-backed workspace
// loader idiom (internal/workspace/repository/base.Repository.Load).
func LoadTemplates(ctx context.Context, fs afs.Service, url string) ([]Template, error) {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("synth: read template set %s: %w", url, err)
	}
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("synth: parse template set %s: %w", url, err)
	}
	templates := make([]Template, 0, len(file.Templates))
	for _, t := range file.Templates {
		tmpl := Template{Name: t.Name, Parameters: t.Parameters}
		for _, pat := range t.Patterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("synth: template %s: compile pattern: %w", t.Name, err)
			}
			tmpl.Patterns = append(tmpl.Patterns, re)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
