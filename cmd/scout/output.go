package scout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/redactyl/scout/internal/audit"
	"github.com/redactyl/scout/internal/cache"
	"github.com/redactyl/scout/internal/engine"
	"github.com/redactyl/scout/internal/report"
	"github.com/redactyl/scout/internal/types"
)

// render writes res in the selected format to stdout.
func (o *rootOptions) render(res *types.ScanResult, format string) error {
	opts := report.PrintOptions{NoColor: o.noColor(), ShowTarget: len(res.Targets) > 1}
	switch format {
	case "json":
		return report.WriteJSON(o.stdout, res)
	case "sarif":
		return report.WriteSARIF(o.stdout, res, version)
	case "table":
		return report.PrintTable(o.stdout, res, opts)
	case "text":
		report.PrintText(o.stdout, res, opts)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// loadBaseline reads path. A missing file yields no baseline; a corrupt
// one is reported and ignored.
func (o *rootOptions) loadBaseline(path string) *report.Baseline {
	if path == "" {
		return nil
	}
	b, err := report.LoadBaseline(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			o.log.WithField("path", path).Debug("no baseline file")
		} else {
			o.log.WithError(err).Warn("ignoring baseline")
		}
		return nil
	}
	return &b
}

// eventLogger turns engine progress into log lines. Repository failures
// are warnings; everything else is visible with --progress or -v.
func eventLogger(log logrus.FieldLogger) func(engine.Event) {
	return func(ev engine.Event) {
		e := log.WithField("event", string(ev.Kind))
		switch ev.Kind {
		case engine.EventPhase:
			e.WithField("phase", ev.Phase.String()).Debug("phase")
		case engine.EventRepoError:
			e.WithField("target", ev.Target).WithError(ev.Err).Warn("repository skipped")
		case engine.EventScanDone:
			e.WithFields(logrus.Fields{"target": ev.Target, "findings": ev.Findings}).Info("scanned")
		default:
			e.WithField("target", ev.Target).Info(string(ev.Kind))
		}
	}
}

// runContext is cancelled by SIGINT/SIGTERM and by --timeout.
func (o *rootOptions) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if o.flagTimeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, o.flagTimeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// recordRun appends the run to the audit log under root.
func (o *rootOptions) recordRun(root string, res *types.ScanResult, baselineFile string) {
	if o.flagNoAudit || root == "" {
		return
	}
	log := audit.NewAuditLog(root)
	if err := log.LogScan(audit.CreateScanRecord(res, baselineFile)); err != nil {
		o.log.WithError(err).Warn("audit log not written")
	}
}

func (o *rootOptions) saveLast(root string, res *types.ScanResult) {
	if err := cache.SaveResults(root, res); err != nil {
		o.log.WithError(err).Debug("last scan not saved")
	}
}

// exitFor maps a run onto the process exit code. An aborted run exits 2
// with runErr; --fail-on can only lower a findings exit to clean.
func exitFor(res *types.ScanResult, runErr error, failOn string) error {
	if runErr != nil {
		return &exitError{code: types.ExitError, err: runErr}
	}
	code := res.ExitCode()
	switch code {
	case types.ExitClean:
		return nil
	case types.ExitFindings:
		if failOn != "" && !report.ShouldFail(res.Findings, failOn) {
			return nil
		}
		return &exitError{code: code}
	default:
		if n := res.TargetFailures(); n > 0 {
			return &exitError{code: code, err: fmt.Errorf("%d of %d targets could not be scanned", n, len(res.Targets))}
		}
		return &exitError{code: code, err: errors.New("scan incomplete")}
	}
}
