package stub

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/simonhull/hatch/internal/scaffold"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/flutter_feature.yml
var defaultFixture []byte

// Fixture is a templated file set. Both Path and Content of each entry
// are text/template sources.
type Fixture struct {
	Name  string               `yaml:"-"`
	Files []scaffold.FileEntry `yaml:"files"`
}

// TemplateData is what fixture templates are rendered with.
type TemplateData struct {
	SessionID string
	Input     string
	Feature   string
}

// DefaultFixture returns the embedded Flutter feature fixture.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture("flutter_feature", defaultFixture)
}

// LoadFixture reads a fixture file from disk.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return ParseFixture(path, data)
}

// ParseFixture decodes fixture YAML.
func ParseFixture(name string, data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", name, err)
	}
	for i, e := range f.Files {
		if e.Path == "" {
			return nil, fmt.Errorf("fixture %s: files[%d] has no path", name, i)
		}
	}
	f.Name = name
	return &f, nil
}

// Render produces the descriptor for one request.
func (f *Fixture) Render(r *Renderer, data TemplateData) (*scaffold.Descriptor, error) {
	desc := &scaffold.Descriptor{Files: make([]scaffold.FileEntry, 0, len(f.Files))}
	for i, e := range f.Files {
		path, err := r.RenderString(fmt.Sprintf("%s:files[%d].path", f.Name, i), e.Path, data)
		if err != nil {
			return nil, err
		}
		content, err := r.RenderString(fmt.Sprintf("%s:files[%d].content", f.Name, i), e.Content, data)
		if err != nil {
			return nil, err
		}
		desc.Files = append(desc.Files, scaffold.FileEntry{Path: path, Content: content})
	}
	return desc, nil
}
