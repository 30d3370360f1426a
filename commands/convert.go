package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/commands/formatter"
	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/internal/scanner"
	"github.com/Qwejay/Qconverto/internal/worker"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

type convertOptions struct {
	to           string
	outputDir    string
	output       string
	recursive    bool
	skipExisting bool
	concurrency  int
	noHistory    bool
	quiet        bool
}

func newConvertCommand(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert files, or every supported file in a directory",
		Example: `  qconverto convert photo.png --to pdf
  qconverto convert report.pdf --to docx --output /tmp/report.docx
  qconverto convert ~/Music --to mp3 --recursive --output-dir ~/Converted`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd.Context(), args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.to, "to", "t", "", "target extension (default: recommended per category)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for converted files (default: next to each input)")
	f.StringVar(&opts.output, "output", "", "exact output path (single input file only)")
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "descend into subdirectories")
	f.BoolVar(&opts.skipExisting, "skip-existing", false, "skip files whose output already exists (requires --to)")
	f.IntVarP(&opts.concurrency, "concurrency", "j", 0, "parallel conversions (default from config)")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record conversions in the history")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func (a *app) runConvert(ctx context.Context, args []string, opts convertOptions) error {
	if err := a.requireValidConfig(); err != nil {
		return err
	}
	reqs, err := collectRequests(args, opts)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return errors.New("no convertible files found")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := a.openRuntime(!opts.noHistory)
	if err != nil {
		return err
	}
	defer env.Close()

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Pipeline.Concurrency
	}
	progress := newBatchProgress(a.stderr, len(reqs), opts.quiet || !a.out.IsTable())
	results := env.pool(concurrency).RunBatch(ctx, reqs, progress.track)
	progress.finish()

	return a.reportResults(results, env.pipeline.Metrics())
}

// collectRequests expands directories and applies the output flags.
func collectRequests(args []string, opts convertOptions) ([]pipeline.Request, error) {
	if opts.output != "" && len(args) > 1 {
		return nil, errors.New("--output can only be used with a single input file")
	}
	if opts.skipExisting && opts.to == "" {
		return nil, errors.New("--skip-existing requires --to")
	}

	var reqs []pipeline.Request
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// missing files still become jobs so they show up as file_not_found
			reqs = append(reqs, pipeline.Request{
				InputPath:  arg,
				TargetExt:  opts.to,
				OutputDir:  opts.outputDir,
				OutputPath: opts.output,
			})
			continue
		}
		if opts.output != "" {
			return nil, errors.New("--output cannot be used with a directory")
		}

		s := scanner.New(arg, opts.outputDir, opts.to)
		s.Recursive = opts.recursive
		s.SkipExisting = opts.skipExisting
		found, err := s.ScanDirectory()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, found...)
	}
	return reqs, nil
}

// resultView exposes the job error, which JobResult keeps out of JSON.
type resultView struct {
	*models.JobResult
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type convertResultView struct {
	Results []resultView   `json:"results"`
	Summary worker.Summary `json:"summary"`
	Metrics utils.Snapshot `json:"metrics"`
}

func (a *app) reportResults(results []*models.JobResult, metrics *utils.Metrics) error {
	headers := []string{"INPUT", "OUTPUT", "STATE", "BACKEND", "DETAIL"}
	rows := make([][]string, 0, len(results))
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, resultView{JobResult: r, ErrorKind: r.ErrorKind(), Error: r.ErrorMessage()})
		detail := r.Note
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{
			formatter.Truncate(r.InputPath, 40),
			formatter.Truncate(r.OutputPath, 40),
			stateLabel(string(r.State), r.Degraded),
			r.Backend,
			formatter.Truncate(detail, 60),
		})
	}

	summary := worker.Summarize(results)
	if err := a.out.Print(headers, rows, convertResultView{Results: views, Summary: summary, Metrics: metrics.Snapshot()}); err != nil {
		return err
	}
	if a.out.IsTable() {
		_, _ = fmt.Fprintf(a.stdout, "\n%s %d succeeded (%d degraded), %s %d failed, %s %d cancelled\n",
			okMark("✓"), summary.Succeeded, summary.Degraded,
			failMark("✗"), summary.Failed,
			warnMark("■"), summary.Cancelled)
	}

	if summary.Failed > 0 || summary.Cancelled > 0 {
		return fmt.Errorf("%d of %d conversions did not succeed", summary.Failed+summary.Cancelled, summary.Total)
	}
	return nil
}
