package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/jointab/internal/cli/output"
	"github.com/leapstack-labs/jointab/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new jointab project",
		Long: `Initialize a new jointab project.

This creates:
  - jointab.yaml configuration file
  - pipeline.yaml, an empty pipeline with a commented example
  - .gitignore for the state database and outputs

Use --example to create a working pipeline with sample CSV data that joins
orders to customers and regions.`,
		Example: `  # Initialize in current directory
  jointab init

  # Initialize a new directory with the example pipeline
  jointab init my-project --example
  cd my-project && jointab run

  # Overwrite existing files
  jointab init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			r := rendererFor(cmd)

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example pipeline with sample data")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	files, err := loadScaffold(template)
	if err != nil {
		return err
	}
	outcome, err := writeScaffold(files, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	first := true
	for _, group := range scaffoldGroups {
		var listed bool
		for _, f := range files {
			if f.Group != group {
				continue
			}
			if !listed {
				if !first {
					r.Println("")
				}
				r.Header(2, group)
				listed, first = true, false
			}
			r.StatusLine(f.Target, outcome[f.Target])
		}
	}

	r.Println("")
	r.Success("jointab project initialized")
	r.Println("")
	r.Println("Next steps:")
	if template == "example" {
		r.Println("  jointab dag      Show the pipeline's tabs and steps")
		r.Println("  jointab run      Run the pipeline and write out/report.csv")
		r.Println("  jointab runs     List recorded runs")
	} else {
		r.Println("  1. Describe your tabs, steps and outputs in pipeline.yaml")
		r.Println("  2. Run 'jointab run'")
		r.Println("  3. Try 'jointab match a.csv b.csv' to find join keys")
	}
	return nil
}
