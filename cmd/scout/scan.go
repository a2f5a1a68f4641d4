package scout

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/scout/internal/config"
	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/files"
	"github.com/redactyl/scout/internal/tui"
	"github.com/redactyl/scout/internal/types"
)

// job is one fully resolved scan invocation.
type job struct {
	layers       layers
	cfg          engine.Config
	req          engine.Request
	opts         []engine.Option
	stateRoot    string
	baselinePath string
}

func (o *rootOptions) execute(ctx context.Context, j job) (*types.ScanResult, error) {
	opts := append([]engine.Option{
		engine.WithLogger(o.log),
		engine.WithEvents(eventLogger(o.log)),
	}, j.opts...)
	runCtx, cancel := o.runContext(ctx)
	defer cancel()
	return engine.New(j.cfg, opts...).Run(runCtx, j.req)
}

// finish renders res (or opens the viewer), records the run and maps it
// onto an exit code.
func (o *rootOptions) finish(j job, res *types.ScanResult, runErr error, openTUI bool, rescan func() (*types.ScanResult, error)) error {
	if openTUI {
		opts := tui.Options{BaselinePath: j.baselinePath, Rescan: rescan, AuditRoot: j.stateRoot, Version: version}
		if j.req.Baseline != nil {
			opts.Baseline = *j.req.Baseline
		}
		if err := tui.Run(res, opts); err != nil {
			return &exitError{code: types.ExitError, err: err}
		}
	} else if err := o.render(res, o.format(j.layers)); err != nil {
		return &exitError{code: types.ExitError, err: err}
	}
	if j.stateRoot != "" {
		o.recordRun(j.stateRoot, res, j.baselinePath)
		o.saveLast(j.stateRoot, res)
	}
	return exitFor(res, runErr, o.failOn(j.layers))
}

// validateOutput rejects unknown --fail-on thresholds and formats before
// any scanning starts.
func (o *rootOptions) validateOutput(l layers) error {
	if f := o.failOn(l); f != "" {
		if _, ok := types.ParseSeverity(f); !ok {
			return usageError("invalid --fail-on %q (want low, medium, high or critical)", f)
		}
	}
	switch f := o.format(l); f {
	case "text", "table", "json", "sarif":
		return nil
	default:
		return usageError("unknown output format %q", f)
	}
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

type scanFlags struct {
	git               string
	includeUntracked  bool
	includeIgnored    bool
	cache             bool
	noCache           bool
	skipDirs          []string
	ignore            []string
	noDefaultExcludes bool
	tui               bool
}

func newScanCmd(o *rootOptions) *cobra.Command {
	var sf scanFlags
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan files, directories and git working trees",
		Long: `Scan evaluates the merged rule packs against every file under the given
paths (default: the current directory). A path inside a git working tree
is enumerated through git unless --git=never.`,
		Example: `  scout scan
  scout scan --json ./services ./infra
  scout scan --git=never --skip-dir fixtures --fail-on high`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{"."}
			}
			j, err := o.scanJob(cmd, paths, sf)
			if err != nil {
				return err
			}
			if sf.tui && !isTerminal(o.stdout) {
				return usageError("--tui needs an interactive terminal")
			}
			res, runErr := o.execute(cmd.Context(), j)
			rescan := func() (*types.ScanResult, error) {
				return o.execute(context.Background(), j)
			}
			return o.finish(j, res, runErr, sf.tui, rescan)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sf.git, "git", "", "git enumeration: auto|always|never (default auto)")
	f.BoolVar(&sf.includeUntracked, "include-untracked", true, "in git mode, scan untracked files")
	f.BoolVar(&sf.includeIgnored, "include-ignored", false, "in git mode, scan files ignored by .gitignore")
	f.BoolVar(&sf.cache, "cache", false, "reuse findings of unchanged files from the last scan")
	f.BoolVar(&sf.noCache, "no-cache", false, "disable the incremental cache even if configured")
	f.StringSliceVar(&sf.skipDirs, "skip-dir", nil, "directory names to skip")
	f.StringSliceVar(&sf.ignore, "ignore", nil, "extra ignore globs")
	f.BoolVar(&sf.noDefaultExcludes, "no-default-excludes", false, "scan vendored and build directories too")
	f.BoolVar(&sf.tui, "tui", false, "open the interactive viewer")
	return cmd
}

func (o *rootOptions) scanJob(cmd *cobra.Command, paths []string, sf scanFlags) (job, error) {
	root := rootOf(paths)
	l, err := o.loadLayers(root)
	if err != nil {
		return job{}, usageError("config: %w", err)
	}
	if err := o.validateOutput(l); err != nil {
		return job{}, err
	}
	var gitMode engine.GitMode
	if sf.git != "" {
		if gitMode, err = config.ParseGitMode(sf.git); err != nil {
			return job{}, usageError("%w", err)
		}
	}
	cfg, err := o.engineConfig(l, func(c *engine.Config) {
		if gitMode != "" {
			c.GitMode = gitMode
		}
		if cmd.Flags().Changed("include-untracked") {
			c.IncludeUntracked = sf.includeUntracked
		}
		if cmd.Flags().Changed("include-ignored") {
			c.IncludeIgnored = sf.includeIgnored
		}
		if sf.cache {
			c.Cache = true
		}
		if sf.noCache {
			c.Cache = false
		}
		if sf.noDefaultExcludes {
			c.SkipDirs = append([]string{".git"}, l.merged.SkipDirs...)
			c.IgnoreGlobs = append(files.StateGlobs(), l.merged.Ignore...)
		}
		c.SkipDirs = append(c.SkipDirs, sf.skipDirs...)
		c.IgnoreGlobs = append(c.IgnoreGlobs, sf.ignore...)
	})
	if err != nil {
		return job{}, usageError("config: %w", err)
	}

	j := job{
		layers:       l,
		cfg:          cfg,
		baselinePath: o.baselinePath(l),
		req: engine.Request{
			Paths: paths,
			Rules: o.ruleSources(l, root),
		},
	}
	j.req.Baseline = o.loadBaseline(j.baselinePath)
	if isDir(root) {
		j.stateRoot = root
	}
	return j, nil
}

// baselineOf returns the findings of an unfiltered run. Runs that left any
// target unscanned are refused so the baseline never silently shrinks.
func (o *rootOptions) baselineOf(ctx context.Context, j job) ([]types.Finding, error) {
	j.req.Baseline = nil
	res, err := o.execute(ctx, j)
	if err != nil {
		return nil, &exitError{code: types.ExitError, err: err}
	}
	if n := res.TargetFailures(); n > 0 || !res.Complete {
		return nil, &exitError{code: types.ExitError, err: fmt.Errorf("baseline not updated: %d targets could not be scanned", n)}
	}
	return res.Findings, nil
}
