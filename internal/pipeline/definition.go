// Package pipeline runs pipeline files: named tabs loaded from sources, join
// steps that combine them, and outputs that write the results.
//
// A pipeline file looks like:
//
//	tabs:
//	  - name: orders
//	    type: csv
//	    path: data/orders.csv
//	  - name: customers
//	    type: sqlite
//	    path: crm.db
//	    table: customers
//	steps:
//	  - name: enriched
//	    join:
//	      left: orders
//	      right: customers
//	      left_on: [customer_id]
//	      right_on: [id]
//	      type: left
//	      right_all: true
//	outputs:
//	  - tab: enriched
//	    path: out/enriched.parquet
//
// Steps may read tabs or the results of other steps; they run in dependency
// order and independent work runs concurrently.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/jointab/internal/dag"
	"github.com/leapstack-labs/jointab/internal/sink"
	"github.com/leapstack-labs/jointab/internal/source"
)

// Definition is a parsed pipeline file.
type Definition struct {
	Tabs    []Tab    `yaml:"tabs"`
	Steps   []Step   `yaml:"steps"`
	Outputs []Output `yaml:"outputs"`

	// Path is the file the definition was loaded from, if any.
	Path string `yaml:"-"`
}

// Tab is a named table loaded from a source.
type Tab struct {
	Name        string `yaml:"name"`
	source.Spec `yaml:",inline"`
}

// Step joins two tabs into a new tab named after the step.
type Step struct {
	Name string `yaml:"name"`

	// Join holds the raw step parameters as written, in any supported
	// version. Params is the migrated, decoded form.
	Join   map[string]any `yaml:"join"`
	Params JoinParams     `yaml:"-"`
}

// Output writes a tab to a file.
type Output struct {
	Tab    string `yaml:"tab"`
	Path   string `yaml:"path"`
	Format string `yaml:"format,omitempty"`
}

// Load reads and validates a pipeline file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // pipeline path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

// Parse decodes and validates pipeline YAML, migrating step parameters to
// the current version.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	for i := range def.Steps {
		st := &def.Steps[i]
		migrated, err := MigrateParams(st.Join)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", st.Name, err)
		}
		params, err := DecodeParams(migrated)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", st.Name, err)
		}
		st.Join = migrated
		st.Params = params
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks names, references and the step graph.
func (d *Definition) Validate() error {
	if len(d.Tabs) == 0 {
		return fmt.Errorf("pipeline defines no tabs")
	}
	seen := make(map[string]string)
	for _, t := range d.Tabs {
		if t.Name == "" {
			return fmt.Errorf("tab name is required")
		}
		if prev, dup := seen[t.Name]; dup {
			return fmt.Errorf("tab %q is already defined as a %s", t.Name, prev)
		}
		seen[t.Name] = "tab"
		if t.Type == "" {
			return fmt.Errorf("tab %q: source type not specified", t.Name)
		}
		if !source.IsRegistered(strings.ToLower(t.Type)) {
			return fmt.Errorf("tab %q: %w", t.Name, &source.UnknownSourceError{Type: t.Type, Available: source.ListSources()})
		}
	}
	for _, st := range d.Steps {
		if st.Name == "" {
			return fmt.Errorf("step name is required")
		}
		if prev, dup := seen[st.Name]; dup {
			return fmt.Errorf("step %q is already defined as a %s", st.Name, prev)
		}
		seen[st.Name] = "step"
	}
	for _, st := range d.Steps {
		if st.Params.Left == "" {
			return fmt.Errorf("step %q: left tab is required", st.Name)
		}
		for _, ref := range []string{st.Params.Left, st.Params.Right} {
			if ref == "" {
				continue
			}
			if _, ok := seen[ref]; !ok {
				return fmt.Errorf("step %q: unknown tab %q", st.Name, ref)
			}
		}
	}
	for _, out := range d.Outputs {
		if _, ok := seen[out.Tab]; !ok {
			return fmt.Errorf("output %q: unknown tab %q", out.Path, out.Tab)
		}
		if out.Path == "" {
			return fmt.Errorf("output for tab %q has no path", out.Tab)
		}
		if _, err := sink.Open(out.Path, out.Format); err != nil {
			return fmt.Errorf("output %q: %w", out.Path, err)
		}
	}
	if _, err := d.Graph(); err != nil {
		return err
	}
	return nil
}

// Node is a vertex of the pipeline graph: exactly one of Tab and Step is set.
type Node struct {
	Tab  *Tab
	Step *Step
}

// Graph builds the dependency graph of tabs and steps.
func (d *Definition) Graph() (*dag.Graph[Node], error) {
	g := dag.NewGraph[Node]()
	for i := range d.Tabs {
		g.AddNode(d.Tabs[i].Name, Node{Tab: &d.Tabs[i]})
	}
	for i := range d.Steps {
		g.AddNode(d.Steps[i].Name, Node{Step: &d.Steps[i]})
	}
	for _, st := range d.Steps {
		for _, ref := range []string{st.Params.Left, st.Params.Right} {
			if ref == "" {
				continue
			}
			if err := g.AddEdge(ref, st.Name); err != nil {
				return nil, fmt.Errorf("step %q: %w", st.Name, err)
			}
		}
	}
	if has, cycle := g.HasCycle(); has {
		return nil, &dag.CycleError{Path: cycle}
	}
	return g, nil
}

// BaseDir is the directory relative tab and output paths resolve against.
func (d *Definition) BaseDir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}

func resolvePath(base, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
