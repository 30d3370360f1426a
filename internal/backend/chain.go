package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Result is the outcome of a chain run that produced an output.
type Result struct {
	Strategy string
	Outcome  Outcome
	Attempts []models.BackendAttempt
}

// Chain tries its strategies in order until one succeeds.
type Chain struct {
	category   models.Category
	strategies []Strategy
	log        *utils.ComponentLogger
}

// NewChain creates a chain for category.
func NewChain(category models.Category, strategies ...Strategy) *Chain {
	return &Chain{
		category:   category,
		strategies: strategies,
		log:        utils.NewComponentLogger("backend").With("category", string(category)),
	}
}

// Category returns the category the chain serves.
func (c *Chain) Category() models.Category {
	return c.category
}

// Names returns the strategy names in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Run drives the strategies. cancelled is polled before each strategy; onProgress may be nil.
// The returned Result is never nil so the attempt log survives failures; the error is a
// *models.ConversionError of kind ErrCancelled or ErrBackendFailure.
func (c *Chain) Run(ctx context.Context, req Request, onProgress ProgressFunc, cancelled func() bool) (*Result, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	log := c.log.WithContext(ctx)

	attempts := make([]models.BackendAttempt, 0, len(c.strategies))
	failures := make([]string, 0, len(c.strategies))

	skipRest := func(from int, reason string) {
		for _, s := range c.strategies[from:] {
			attempts = append(attempts, models.BackendAttempt{
				Backend: s.Name(),
				Kind:    string(s.Kind()),
				Outcome: models.OutcomeSkipped,
				Reason:  reason,
			})
		}
	}

	for i, s := range c.strategies {
		if cancelled() || ctx.Err() != nil {
			skipRest(i, constants.SkipCancelled)
			return &Result{Attempts: attempts}, models.NewError(models.ErrCancelled, req.InputPath, "conversion cancelled", ctx.Err())
		}

		log.Debug("Attempting strategy", "strategy", s.Name(), "kind", s.Kind())
		start := time.Now()
		outcome, err := s.Attempt(ctx, req, onProgress)
		attempt := models.BackendAttempt{
			Backend:  s.Name(),
			Kind:     string(s.Kind()),
			Duration: time.Since(start),
		}

		if err == nil {
			attempt.Outcome = models.OutcomeSuccess
			attempts = append(attempts, attempt)
			skipRest(i+1, constants.SkipPreemptedBySuccess)
			log.Info("Strategy succeeded", "strategy", s.Name(), "degraded", outcome.Degraded)
			return &Result{Strategy: s.Name(), Outcome: outcome, Attempts: attempts}, nil
		}

		attempt.Outcome = models.OutcomeFailed
		attempt.Error = err.Error()
		attempt.Fatal = IsFatal(err)
		attempts = append(attempts, attempt)
		failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
		log.Warn("Strategy failed", "strategy", s.Name(), "fatal", attempt.Fatal, "error", err)

		if attempt.Fatal {
			skipRest(i+1, constants.SkipPreemptedByFatal)
			break
		}
	}

	msg := "all strategies failed"
	if len(c.strategies) == 0 {
		msg = "no strategies configured"
	}
	return &Result{Attempts: attempts}, &models.ConversionError{
		Kind:     models.ErrBackendFailure,
		Path:     req.InputPath,
		Message:  msg,
		Failures: failures,
	}
}
