package main

import (
	"cmp"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/jointab/internal/cli"
	"github.com/leapstack-labs/jointab/internal/config"
	"github.com/leapstack-labs/jointab/internal/pipeline"
	"github.com/leapstack-labs/jointab/internal/sink"
	"github.com/leapstack-labs/jointab/internal/source"
	"github.com/leapstack-labs/jointab/pkg/core"
)

// docPage is one generated file.
type docPage struct {
	file string
	w    *MarkdownWriter
}

// generateCLIDocs writes the command reference, the configuration reference
// and the pipeline file reference to outDir.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := documented(root)

	pages := []docPage{
		{"index.md", indexPage(root, cmds)},
		{"configuration.md", configPage()},
		{"pipeline.md", pipelinePage()},
	}
	for _, cmd := range cmds {
		pages = append(pages, docPage{cmd.Name() + ".md", commandPage(cmd)})
	}

	for _, p := range pages {
		if err := os.WriteFile(filepath.Join(outDir, p.file), p.w.Bytes(), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.file, err)
		}
		log.Printf("  Generated %s", p.file)
	}
	return nil
}

// documented returns the user-facing subcommands of root.
func documented(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func indexPage(root *cobra.Command, cmds []*cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for jointab")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/jointab/cmd/jointab@latest")

	w.Header(2, "Commands")
	rows := make([][]string, 0, len(cmds))
	for _, cmd := range cmds {
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Table(flagHeaders, flagRows(root.PersistentFlags()))
	w.Paragraph("Every option can also be set in jointab.yaml or the environment; see [Configuration](/cli/configuration). " +
		"The pipeline file format is described in [Pipeline file](/cli/pipeline).")
	return w
}

// configPage lists every config key with its environment variable and
// default, read off config.Config so new keys document themselves.
func configPage() *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "jointab.yaml keys and environment variables")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("jointab reads %s from the project root. Environment variables override the file and flags override both.",
		InlineCode(config.ConfigFileName)))

	var rows [][]string
	def := reflect.ValueOf(config.Default()).Elem()
	for _, f := range fields(def.Type(), "koanf") {
		rows = append(rows, []string{
			InlineCode(f.key),
			InlineCode(config.EnvPrefix + strings.ToUpper(f.key)),
			f.kind,
			defaultCell(def.FieldByIndex(f.index)),
		})
	}
	w.Table([]string{"Key", "Environment", "Type", "Default"}, rows)
	return w
}

// pipelinePage documents pipeline.yaml from the types that decode it.
func pipelinePage() *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("Pipeline file", "Keys of pipeline.yaml")
	w.GeneratedMarker()

	w.Header(1, "Pipeline file")
	w.Paragraph(fmt.Sprintf("A pipeline declares %s loaded from sources, %s that join two tabs into a new one, and %s written to files.",
		InlineCode("tabs"), InlineCode("steps"), InlineCode("outputs")))

	sections := []struct {
		title string
		typ   reflect.Type
		tag   string
		notes []string
	}{
		{"tabs", reflect.TypeFor[pipeline.Tab](), "yaml", []string{
			"Source types: " + codeList(source.ListSources()),
		}},
		{"steps", reflect.TypeFor[pipeline.Step](), "yaml", nil},
		{"steps[].join", reflect.TypeFor[pipeline.JoinParams](), "mapstructure", []string{
			"Join types: " + codeList(joinTypeNames()),
			fmt.Sprintf("Parameters are stored at version %d; older versions are migrated on load.", pipeline.ParamsVersion),
		}},
		{"outputs", reflect.TypeFor[pipeline.Output](), "yaml", []string{
			"Formats: " + codeList(sink.ListFormats()),
		}},
	}

	for _, s := range sections {
		w.Header(2, InlineCode(s.title))
		var rows [][]string
		for _, f := range fields(s.typ, s.tag) {
			rows = append(rows, []string{InlineCode(f.key), f.kind})
		}
		w.Table([]string{"Key", "Type"}, rows)
		if len(s.notes) > 0 {
			w.BulletList(s.notes)
		}
	}
	return w
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	w.Paragraph(cmp.Or(cmd.Long, cmd.Short))

	w.Header(2, "Usage")
	w.CodeBlock("bash", cmd.UseLine())

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		w.BulletList(codeItems(cmd.Aliases))
	}
	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range documented(cmd) {
			rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}
	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		w.Table(flagHeaders, flagRows(cmd.LocalFlags()))
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Header(2, "Global Options")
		w.Table(flagHeaders, flagRows(cmd.InheritedFlags()))
	}
	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w
}

var flagHeaders = []string{"Option", "Short", "Default", "Description"}

func flagRows(flags *pflag.FlagSet) [][]string {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if def != "" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	return rows
}

// field is one documented key of a decoded struct.
type field struct {
	key   string
	kind  string
	index []int
}

// fields walks the exported fields of t keyed by tag, descending into
// ",inline" and anonymous fields and skipping "-".
func fields(t reflect.Type, tag string) []field {
	var out []field
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get(tag), ",")
		if name == "-" {
			continue
		}
		if sf.Anonymous || strings.Contains(opts, "inline") || strings.Contains(opts, "squash") {
			for _, sub := range fields(sf.Type, tag) {
				sub.index = append([]int{i}, sub.index...)
				out = append(out, sub)
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		out = append(out, field{key: name, kind: kindName(sf.Type), index: []int{i}})
	}
	return out
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Struct {
			return "list of objects"
		}
		return "list"
	case reflect.Map, reflect.Struct:
		return "map"
	default:
		return "string"
	}
}

func defaultCell(v reflect.Value) string {
	if v.IsZero() {
		return ""
	}
	return InlineCode(fmt.Sprint(v.Interface()))
}

func joinTypeNames() []string {
	types := []core.JoinType{core.JoinInner, core.JoinLeft, core.JoinRight, core.JoinOuter}
	names := make([]string, len(types))
	for i, jt := range types {
		names[i] = string(jt)
	}
	return names
}

func codeItems(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = InlineCode(s)
	}
	return out
}

func codeList(items []string) string {
	return strings.Join(codeItems(items), ", ")
}

// dedent strips the indentation shared by the non-blank lines of s.
func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
