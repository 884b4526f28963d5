package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/jointab/internal/cli/output"
	"github.com/leapstack-labs/jointab/internal/pipeline"
	"github.com/leapstack-labs/jointab/internal/state"
	"github.com/leapstack-labs/jointab/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Targets     []string
	Watch       bool
	Concurrency int
	NoState     bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline file",
		Long: `Load every tab of a pipeline, run its join steps in dependency order and
write its outputs. Independent tabs load concurrently.

Each run and the statistics of each join are recorded in the state database;
see 'jointab runs'. With --watch the pipeline runs again whenever the pipeline
file or a file under its directory changes.`,
		Example: `  # Run the pipeline from jointab.yaml (default pipeline.yaml)
  jointab run

  # Run another pipeline, only what the "report" tab needs
  jointab run --pipeline flows/monthly.yaml --target report

  # Re-run on every change
  jointab run --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Targets, "target", nil, "Only build these tabs and what they depend on")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when the pipeline or its data files change")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Maximum tabs loaded or joined at once (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Do not record the run in the state database")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var store state.Store
	if !opts.NoState {
		s, err := cmdCtx.OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	if !opts.Watch {
		return runPipelineOnce(cmd.Context(), cmdCtx, store, opts)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchPipeline(ctx, cmdCtx, store, opts)
}

func runPipelineOnce(ctx context.Context, cmdCtx *CommandContext, store state.Store, opts *RunOptions) error {
	cfg := cmdCtx.Cfg
	def, err := pipeline.Load(cfg.Pipeline)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Def:             def,
		Logger:          cmdCtx.Logger,
		Normalizer:      cmdCtx.Normalizer,
		DefaultJoinType: cfg.JoinType(),
		FanoutWarnRatio: cfg.FanoutWarnRatio,
		Store:           store,
		Targets:         opts.Targets,
		Concurrency:     opts.Concurrency,
	}
	start := time.Now()
	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return renderRunResult(cmdCtx.Renderer, res, time.Since(start))
}

func renderRunResult(r *output.Renderer, res *pipeline.Result, elapsed time.Duration) error {
	if err := r.Table(stepResultTable(res.Steps)); err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return nil
	}
	for _, path := range res.Outputs {
		r.Println(r.Styles().Muted.Render("wrote " + path))
	}
	msg := fmt.Sprintf("Completed %d steps in %s", len(res.Steps), elapsed.Round(time.Millisecond))
	if res.RunID != "" {
		msg += " (run " + res.RunID + ")"
	}
	r.Success(msg)
	return nil
}

func stepResultTable(steps []pipeline.StepResult) *core.Table {
	var name, typ, keys, out, matched, unLeft, unRight []core.Value
	for _, s := range steps {
		name = append(name, core.Text(s.Step))
		if s.PassThrough {
			typ = append(typ, core.Text("pass-through"))
			keys = append(keys, core.Missing())
			out = append(out, core.Missing())
			matched = append(matched, core.Missing())
			unLeft = append(unLeft, core.Missing())
			unRight = append(unRight, core.Missing())
			continue
		}
		pairs := make([]string, len(s.Plan.LeftKeys))
		for i, lk := range s.Plan.LeftKeys {
			pairs[i] = lk + "=" + s.Plan.RightKeys[i]
		}
		typ = append(typ, core.Text(string(s.Plan.Type)))
		keys = append(keys, core.Text(strings.Join(pairs, ",")))
		out = append(out, core.Int(int64(s.Stats.OutputRows)))
		matched = append(matched, core.Int(int64(s.Stats.MatchedPairs)))
		unLeft = append(unLeft, core.Int(int64(s.Stats.UnmatchedLeft)))
		unRight = append(unRight, core.Int(int64(s.Stats.UnmatchedRight)))
	}
	return core.MustTable(
		core.MustColumn("step", core.TypeText, name...),
		core.MustColumn("type", core.TypeText, typ...),
		core.MustColumn("keys", core.TypeText, keys...),
		core.MustColumn("output_rows", core.TypeNumber, out...),
		core.MustColumn("matched_pairs", core.TypeNumber, matched...),
		core.MustColumn("unmatched_left", core.TypeNumber, unLeft...),
		core.MustColumn("unmatched_right", core.TypeNumber, unRight...),
	)
}

// watchPipeline runs the pipeline, then again after each burst of changes
// under the pipeline's directory. Failed runs are reported and watching
// continues.
func watchPipeline(ctx context.Context, cmdCtx *CommandContext, store state.Store, opts *RunOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(cmdCtx.Cfg.Pipeline)
	if err := watchDirRecursive(watcher, dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	r := cmdCtx.Renderer
	var outputs []string
	rerun := func() {
		outputs = outputFiles(cmdCtx.Cfg.Pipeline)
		if err := runPipelineOnce(ctx, cmdCtx, store, opts); err != nil && ctx.Err() == nil {
			r.Warning(err.Error())
		}
	}
	rerun()
	r.Println(r.Styles().Muted.Render("watching " + dir + " for changes (Ctrl+C to stop)"))

	trigger := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// outputs and the state database with its -wal file change on every run
			if isOutput(event.Name, outputs) || strings.HasPrefix(filepath.Clean(event.Name), cmdCtx.Cfg.StatePath) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			cmdCtx.Logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			rerun()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// outputFiles returns the files a pipeline writes, so writing them does not
// trigger another run. A pipeline that fails to load has none.
func outputFiles(pipelinePath string) []string {
	def, err := pipeline.Load(pipelinePath)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(def.Outputs))
	for _, out := range def.Outputs {
		p := out.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(def.BaseDir(), p)
		}
		paths = append(paths, filepath.Clean(p))
	}
	return paths
}

func isOutput(path string, outputs []string) bool {
	return slices.Contains(outputs, filepath.Clean(path))
}
