package scout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	flagJSON          bool
	flagSARIF         bool
	flagTable         bool
	flagNoColor       bool
	flagVerbose       bool
	flagProgress      bool
	flagLogJSON       bool
	flagConfig        string
	flagThreads       int
	flagFailFast      bool
	flagFailOn        string
	flagBaseline      string
	flagNoBaseline    bool
	flagRules         []string
	flagPacks         []string
	flagNoGlobalRules bool
	flagMaxBytes      int64
	flagShortCircuit  bool
	flagNoAudit       bool
	flagTimeout       time.Duration

	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger
	env    *viper.Viper
}

// exitError carries a process exit code out of a RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &rootOptions{stdout: stdout, stderr: stderr, env: newEnv()}
	root := &cobra.Command{
		Use:           "scout",
		Short:         "Find secrets and risky files in directories, repositories and GitHub organizations",
		Long:          "scout evaluates layered rule packs against local paths, git working trees and the repositories of GitHub owners, and reports redacted findings.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			o.log = newLogger(o)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVar(&o.flagJSON, "json", false, "emit the scan result as JSON")
	pf.BoolVar(&o.flagSARIF, "sarif", false, "emit SARIF 2.1.0")
	pf.BoolVar(&o.flagTable, "table", false, "output findings as a bordered table")
	pf.BoolVar(&o.flagNoColor, "no-color", false, "disable colorized output")
	pf.BoolVarP(&o.flagVerbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&o.flagProgress, "progress", false, "log per-target progress on stderr")
	pf.BoolVar(&o.flagLogJSON, "log-json", false, "log as JSON lines")
	pf.StringVar(&o.flagConfig, "config", "", "config file (default: .scout.yml in the scanned path, then the global config)")
	pf.IntVar(&o.flagThreads, "threads", 0, "worker count (0 = 4, capped at 32)")
	pf.BoolVar(&o.flagFailFast, "fail-fast", false, "abort the run at the first file or target error")
	pf.StringVar(&o.flagFailOn, "fail-on", "", "only exit 1 for findings at or above low|medium|high|critical")
	pf.StringVar(&o.flagBaseline, "baseline", "", "baseline file (default "+defaultBaseline+")")
	pf.BoolVar(&o.flagNoBaseline, "no-baseline", false, "report baselined findings too")
	pf.StringSliceVar(&o.flagRules, "rules", nil, "extra rule pack files, highest precedence")
	pf.StringSliceVar(&o.flagPacks, "pack", nil, "builtin rule packs to start from (default: default)")
	pf.BoolVar(&o.flagNoGlobalRules, "no-global-rules", false, "ignore the user's global rule pack")
	pf.Int64Var(&o.flagMaxBytes, "max-bytes", 0, "skip files larger than this (default 1MiB)")
	pf.BoolVar(&o.flagShortCircuit, "short-circuit", false, "skip content rules for files already flagged by name")
	pf.BoolVar(&o.flagNoAudit, "no-audit", false, "do not append the run to the audit log")
	pf.DurationVar(&o.flagTimeout, "timeout", 0, "abort the whole run after this long (0 = no limit)")

	root.AddCommand(
		newScanCmd(o),
		newGitHubCmd(o),
		newBaselineCmd(o),
		newRulesCmd(o),
		newViewCmd(o),
		newConfigCmd(o),
		newCompletionCmd(root),
	)
	return root
}

func newLogger(o *rootOptions) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(o.stderr)
	l.SetLevel(logrus.WarnLevel)
	if lvl := o.env.GetString("log_level"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			l.SetLevel(parsed)
		}
	}
	if o.flagProgress {
		l.SetLevel(logrus.InfoLevel)
	}
	if o.flagVerbose {
		l.SetLevel(logrus.DebugLevel)
	}
	if o.flagLogJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: o.noColor(), FullTimestamp: true})
	}
	return l
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "error:", err)
	return 2
}

// Execute runs the scout CLI. It should be called by the main package.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
