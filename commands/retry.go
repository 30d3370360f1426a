package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/pipeline"
)

func newRetryCommand(a *app) *cobra.Command {
	var (
		limit       int
		concurrency int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "retry [job-id]...",
		Short: "Run failed or cancelled conversions again",
		Long: `Retry re-submits failed and cancelled conversions from the history, oldest
first. A retried job keeps its ID, so its history entry is updated in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireValidConfig(); err != nil {
				return err
			}
			return a.runRetry(cmd.Context(), args, limit, concurrency, quiet)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", constants.DefaultRetryLimit, "maximum number of jobs to retry")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "parallel conversions (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func (a *app) runRetry(ctx context.Context, ids []string, limit, concurrency int, quiet bool) error {
	env, err := a.openRuntime(true)
	if err != nil {
		return err
	}
	defer env.Close()
	if env.history == nil {
		return errors.New("conversion history is disabled (database.enabled: false)")
	}

	var reqs []pipeline.Request
	if len(ids) > 0 {
		for _, id := range ids {
			rec, err := env.history.GetJobByID(id)
			if err != nil {
				return err
			}
			if rec.State == constants.JobStateSucceeded {
				return fmt.Errorf("job %s already succeeded", id)
			}
			reqs = append(reqs, retryRequest(rec.ID, rec.InputPath, rec.TargetExt, rec.OutputPath))
		}
	} else {
		recs, err := env.history.GetRetryable(limit)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			reqs = append(reqs, retryRequest(rec.ID, rec.InputPath, rec.TargetExt, rec.OutputPath))
		}
	}
	if len(reqs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "Nothing to retry")
		return nil
	}

	for _, req := range reqs {
		if err := env.history.IncrementRetry(req.ID); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if concurrency <= 0 {
		concurrency = a.cfg.Pipeline.Concurrency
	}
	progress := newBatchProgress(a.stderr, len(reqs), quiet || !a.out.IsTable())
	results := env.pool(concurrency).RunBatch(ctx, reqs, progress.track)
	progress.finish()

	return a.reportResults(results, env.pipeline.Metrics())
}

// retryRequest rebuilds a request from history. An empty output path is resolved
// again by the pipeline.
func retryRequest(id, input, target, output string) pipeline.Request {
	return pipeline.Request{
		ID:         id,
		InputPath:  input,
		TargetExt:  target,
		OutputPath: output,
	}
}
