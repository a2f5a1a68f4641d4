package scout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/redactyl/scout/internal/config"
	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/rules"
)

const defaultBaseline = "scout.baseline.json"

// newEnv binds the environment variables scout reads. The token is only
// ever handed to the GitHub lister and cloner.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github_token", "SCOUT_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN")
	_ = v.BindEnv("log_level", "SCOUT_LOG_LEVEL")
	_ = v.BindEnv("no_color", "NO_COLOR")
	return v
}

func pickString(cli string, local, global *string) string {
	if cli != "" {
		return cli
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return ""
}

func pickBool(cli bool, local, global *bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// layers holds the two config files and their merge.
type layers struct {
	local  config.FileConfig
	global config.FileConfig
	merged config.FileConfig
}

// loadLayers reads --config (or the local config found in root) and the
// global config. A missing file is not an error; a malformed one is.
func (o *rootOptions) loadLayers(root string) (layers, error) {
	var l layers
	var err error
	if o.flagConfig != "" {
		if l.local, err = config.LoadFile(o.flagConfig); err != nil {
			return l, err
		}
	} else if root != "" {
		if l.local, err = config.LoadLocal(root); err != nil && !errors.Is(err, config.ErrNotFound) {
			return l, err
		}
	}
	if l.global, err = config.LoadGlobal(); err != nil && !errors.Is(err, config.ErrNotFound) {
		return l, err
	}
	l.merged = config.Merge(l.local, l.global)
	return l, nil
}

func (o *rootOptions) noColor() bool {
	return o.flagNoColor || o.env.GetString("no_color") != "" || !isTerminal(o.stdout)
}

// format picks the output format: flags, then config, then text.
func (o *rootOptions) format(l layers) string {
	cli := ""
	switch {
	case o.flagSARIF:
		cli = "sarif"
	case o.flagJSON:
		cli = "json"
	case o.flagTable:
		cli = "table"
	}
	if f := pickString(cli, l.local.Format, l.global.Format); f != "" {
		return strings.ToLower(f)
	}
	return "text"
}

func (o *rootOptions) baselinePath(l layers) string {
	if o.flagNoBaseline {
		return ""
	}
	if p := pickString(o.flagBaseline, l.local.Baseline, l.global.Baseline); p != "" {
		return p
	}
	return defaultBaseline
}

func (o *rootOptions) failOn(l layers) string {
	return pickString(o.flagFailOn, l.local.FailOn, l.global.FailOn)
}

// engineConfig layers defaults, then config files, then flags.
func (o *rootOptions) engineConfig(l layers, cmdFlags func(*engine.Config)) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if err := l.merged.Apply(&cfg); err != nil {
		return cfg, err
	}
	if o.flagThreads > 0 {
		cfg.Concurrency = o.flagThreads
	}
	if o.flagMaxBytes > 0 {
		cfg.MaxBytes = o.flagMaxBytes
	}
	cfg.FailFast = pickBool(o.flagFailFast, l.local.FailFast, l.global.FailFast)
	cfg.FilenameShortCircuit = pickBool(o.flagShortCircuit, l.local.FilenameShortCircuit, l.global.FilenameShortCircuit)
	if cmdFlags != nil {
		cmdFlags(&cfg)
	}
	return cfg, nil
}

// ruleSources assembles the tier stack: builtin packs, the global pack,
// packs named in config, the repo pack of root and --rules files.
func (o *rootOptions) ruleSources(l layers, root string) []rules.Source {
	packs := []string{"default"}
	var files []string
	useGlobal := true
	if r := l.merged.Rules; r != nil {
		if len(r.Packs) > 0 {
			packs = r.Packs
		}
		files = r.Files
		if r.Global != nil {
			useGlobal = *r.Global
		}
	}
	if len(o.flagPacks) > 0 {
		packs = o.flagPacks
	}
	if o.flagNoGlobalRules {
		useGlobal = false
	}

	var out []rules.Source
	for _, name := range packs {
		out = append(out, rules.BuiltinSource(name))
	}
	if useGlobal {
		if p, ok := rules.FindGlobalPack(); ok {
			out = append(out, rules.FileSource(p, rules.TierGlobal))
		}
	}
	for _, f := range files {
		out = append(out, rules.FileSource(f, rules.TierRepo))
	}
	if root != "" {
		if p, ok := rules.FindRepoPack(root); ok {
			out = append(out, rules.FileSource(p, rules.TierRepo))
		}
	}
	for _, f := range o.flagRules {
		out = append(out, rules.FileSource(f, rules.TierCLI))
	}
	return out
}

// rootOf is the directory whose config, repo pack and state files apply to
// a scan of paths.
func rootOf(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	p := paths[0]
	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return filepath.Dir(p)
	}
	return p
}

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}
