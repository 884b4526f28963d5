package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/jointab/internal/config"
)

//go:embed all:templates
var templateFS embed.FS

// Scaffold groups, in the order init reports them.
const (
	groupConfig   = "Configuration"
	groupPipeline = "Pipeline"
	groupData     = "Data"
)

var scaffoldGroups = []string{groupConfig, groupPipeline, groupData}

// Outcomes of writing one scaffold file.
const (
	fileCreated     = "created"
	fileOverwritten = "overwritten"
	fileKept        = "kept"
)

// scaffoldFile is one embedded template file and where it lands in a project.
type scaffoldFile struct {
	src    string // path inside templateFS
	Target string // slash path relative to the project directory
	Group  string
}

// loadScaffold lists the files of the named template. A "dot_" prefix on a
// file name becomes a leading dot, so dotfiles survive go:embed.
func loadScaffold(name string) ([]scaffoldFile, error) {
	root := path.Join("templates", name)
	if _, err := fs.Stat(templateFS, root); err != nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	var files []scaffoldFile
	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(p, root+"/")
		dir, base := path.Split(rel)
		if rest, ok := strings.CutPrefix(base, "dot_"); ok {
			base = "." + rest
		}
		target := dir + base
		files = append(files, scaffoldFile{src: p, Target: target, Group: scaffoldGroup(target)})
		return nil
	})
	return files, err
}

// scaffoldGroup follows the project layout: sample tabs under data/, the
// pipeline file on its own, everything else is configuration.
func scaffoldGroup(target string) string {
	switch {
	case strings.HasPrefix(target, "data/"):
		return groupData
	case target == config.DefaultPipeline:
		return groupPipeline
	default:
		return groupConfig
	}
}

// writeScaffold writes files under dir and reports each file's outcome.
// Existing files are kept unless force is set.
func writeScaffold(files []scaffoldFile, dir string, force bool) (map[string]string, error) {
	outcome := make(map[string]string, len(files))
	for _, f := range files {
		dst := filepath.Join(dir, filepath.FromSlash(f.Target))

		status := fileCreated
		if _, err := os.Stat(dst); err == nil {
			if !force {
				outcome[f.Target] = fileKept
				continue
			}
			status = fileOverwritten
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		content, err := templateFS.ReadFile(f.src)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dst, content, 0600); err != nil {
			return nil, err
		}
		outcome[f.Target] = status
	}
	return outcome, nil
}
