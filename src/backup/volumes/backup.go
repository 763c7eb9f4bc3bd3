package volumes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dir "oci-volume-backup/src/backend/directory"
	"oci-volume-backup/src/catalog"
	"oci-volume-backup/src/engine"
	"oci-volume-backup/src/remote"
	"oci-volume-backup/src/target"
	pg "oci-volume-backup/src/util/progress"
)

// Outcome is the terminal state of one volume.
type Outcome int

const (
	Success Outcome = iota + 1
	Failure
	// Planned marks a volume that a dry run would have exported.
	Planned
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Planned:
		return "planned"
	}
	return "unknown"
}

// Result describes what happened to one volume.
type Result struct {
	Volume   string
	Path     string
	Command  string
	Outcome  Outcome
	Err      error
	Bytes    int64
	SHA256   string
	Duration time.Duration
}

// Observer receives progress notifications. index is 1-based.
type Observer interface {
	Started(index, total int, vol catalog.Volume, path string)
	Finished(index, total int, res Result)
	Failed(index, total int, res Result)
}

// Options configure Run.
type Options struct {
	Commands engine.Commands
	Runner   remote.Runner
	Volumes  []catalog.Volume
	Backend  *dir.Backend
	Observer Observer
	Logger   zerolog.Logger

	// ContinueOnError keeps going after a failed volume and reports every
	// failure at the end. By default the run stops at the first failure.
	ContinueOnError bool
	// Checksums updates the checksums.txt ledger after the run.
	Checksums bool
	// DryRun reports the planned exports without running them.
	DryRun bool
	// Progress receives byte-count progress lines while streaming; nil
	// disables them.
	Progress io.Writer
	Now      func() time.Time
}

// Report lists the result of every attempted volume in catalog order.
type Report struct {
	Results []Result
}

// Failed returns the failed results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Failure {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the successful results.
func (r Report) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Success {
			out = append(out, res)
		}
	}
	return out
}

// RunError aggregates per-volume failures.
type RunError struct {
	Failures []Result
}

func (e *RunError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("backup of volume %s failed: %v", f.Volume, f.Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Volume, f.Err))
	}
	return fmt.Sprintf("%d volumes failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *RunError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Run backs up every volume in order, one at a time.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	var report Report
	var failures []Result
	sums := map[string]string{}
	total := len(opts.Volumes)

	for i, v := range opts.Volumes {
		path := opts.Backend.ArchivePath(v.Name)
		obs.Started(i+1, total, v, path)

		res := BackupVolume(ctx, opts, v)
		report.Results = append(report.Results, res)
		if res.Outcome == Failure {
			obs.Failed(i+1, total, res)
			failures = append(failures, res)
			if !opts.ContinueOnError {
				break
			}
			continue
		}
		if res.Outcome == Success {
			sums[target.ArchiveName(v.Name)] = res.SHA256
		}
		obs.Finished(i+1, total, res)
	}

	if opts.Checksums && !opts.DryRun {
		if err := opts.Backend.MergeChecksums(sums); err != nil {
			if len(failures) == 0 {
				return report, err
			}
			opts.Logger.Error().Err(err).Msg("Failed to update checksum ledger")
		}
	}
	if len(failures) > 0 {
		return report, &RunError{Failures: failures}
	}
	return report, nil
}

// BackupVolume exports one volume into its archive, replacing any previous
// archive of the same name. A failed transfer can leave a truncated file.
func BackupVolume(ctx context.Context, opts Options, v catalog.Volume) Result {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	started := opts.Now()
	res := Result{Volume: v.Name, Path: opts.Backend.ArchivePath(v.Name)}
	fail := func(err error) Result {
		res.Outcome = Failure
		res.Err = err
		res.Duration = opts.Now().Sub(started)
		return res
	}

	cmd, err := opts.Commands.ExportVolume(v.Name)
	if err != nil {
		return fail(err)
	}
	res.Command = cmd
	if opts.DryRun {
		res.Outcome = Planned
		return res
	}

	f, err := opts.Backend.Create(v.Name)
	if err != nil {
		return fail(err)
	}
	h := sha256.New()
	writers := []io.Writer{f, h}
	var meter *pg.Writer
	if opts.Progress != nil {
		meter = pg.NewWriter(opts.Progress, v.Name)
		writers = append(writers, meter)
	}
	n, err := opts.Runner.Stream(ctx, cmd, io.MultiWriter(writers...))
	if meter != nil {
		meter.Finish()
	}
	res.Bytes = n
	cerr := f.Close()
	if err != nil {
		opts.Logger.Warn().Str("volume", v.Name).Str("path", res.Path).Int64("bytes", n).Msg("Transfer failed, archive left incomplete")
		return fail(err)
	}
	if cerr != nil {
		return fail(fmt.Errorf("close %s: %w", res.Path, cerr))
	}

	res.SHA256 = hex.EncodeToString(h.Sum(nil))
	res.Outcome = Success
	res.Duration = opts.Now().Sub(started)
	opts.Logger.Debug().Str("volume", v.Name).Str("path", res.Path).Int64("bytes", n).Str("sha256", res.SHA256).Msg("Volume archived")
	return res
}

type nopObserver struct{}

func (nopObserver) Started(int, int, catalog.Volume, string) {}
func (nopObserver) Finished(int, int, Result)               {}
func (nopObserver) Failed(int, int, Result)                 {}
