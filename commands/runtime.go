package commands

import (
	"fmt"
	"log/slog"

	"github.com/Qwejay/Qconverto/internal/converter"
	"github.com/Qwejay/Qconverto/internal/db"
	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/internal/worker"
	"github.com/Qwejay/Qconverto/internal/workspace"
)

// runtimeEnv is everything a converting command needs.
type runtimeEnv struct {
	tools     converter.Toolset
	workspace *workspace.Manager
	pipeline  *pipeline.Pipeline
	history   *db.Tracker
}

func (a *app) openRuntime(withHistory bool) (*runtimeEnv, error) {
	cfg := a.cfg
	tools := converter.ResolveTools(cfg.Tools)

	registry, err := converter.NewRegistry(cfg, tools, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend chains: %w", err)
	}

	ws, err := workspace.New(cfg.Pipeline.WorkDir, cfg.Pipeline.WorkMaxAge)
	if err != nil {
		return nil, err
	}
	if _, err := ws.Cleanup(); err != nil {
		slog.Warn("Workspace cleanup failed", "error", err)
	}

	p, err := pipeline.New(pipeline.Options{Config: cfg, Registry: registry, Workspace: ws})
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{tools: tools, workspace: ws, pipeline: p}
	if withHistory && cfg.Database.Enabled {
		if env.history, err = db.New(cfg.Database.Path); err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}
	return env, nil
}

func (r *runtimeEnv) pool(concurrency int) *worker.Pool {
	var rec worker.Recorder
	if r.history != nil {
		rec = r.history
	}
	return worker.New(r.pipeline, rec, concurrency, r.pipeline.Metrics())
}

func (r *runtimeEnv) Close() {
	r.pipeline.Wait()
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			slog.Warn("Failed to close history", "error", err)
		}
	}
}

// openHistory opens the history database for read-only commands.
func (a *app) openHistory() (*db.Tracker, error) {
	if !a.cfg.Database.Enabled {
		return nil, fmt.Errorf("conversion history is disabled (database.enabled: false)")
	}
	tracker, err := db.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return tracker, nil
}

func closeHistory(t *db.Tracker) {
	if err := t.Close(); err != nil {
		slog.Warn("Failed to close history", "error", err)
	}
}
