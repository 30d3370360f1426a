package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/commands/formatter"
	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/workspace"
)

type statsView struct {
	Jobs      map[string]int            `json:"jobs"`
	Backends  map[string]map[string]int `json:"backends"`
	Workspace workspaceView             `json:"workspace"`
}

type workspaceView struct {
	Root    string `json:"root"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the conversion history",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			tracker, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeHistory(tracker)

			jobs, err := tracker.GetJobStats()
			if err != nil {
				return err
			}
			backends, err := tracker.BackendStats()
			if err != nil {
				return err
			}

			view := statsView{Jobs: jobs, Backends: backends, Workspace: workspaceView{Root: a.cfg.Pipeline.WorkDir}}
			if ws, err := workspace.New(a.cfg.Pipeline.WorkDir, 0); err == nil {
				if entries, err := ws.List(); err == nil {
					view.Workspace.Entries = len(entries)
					for _, e := range entries {
						view.Workspace.Bytes += e.Size
					}
				}
			}

			if !a.out.IsTable() {
				return a.out.PrintJSON(view)
			}
			a.printStats(view)
			return nil
		},
	}
}

func (a *app) printStats(v statsView) {
	w := a.stdout
	_, _ = fmt.Fprintln(w, boldText("Conversions"))
	states := []string{
		constants.JobStateSucceeded,
		constants.JobStateFailed,
		constants.JobStateCancelled,
	}
	for _, s := range states {
		_, _ = fmt.Fprintf(w, "├─ %s: %d\n", stateLabel(s, false), v.Jobs[s])
	}
	_, _ = fmt.Fprintf(w, "├─ degraded: %d\n", v.Jobs["degraded"])
	_, _ = fmt.Fprintf(w, "└─ total: %d\n", v.Jobs["total"])

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, boldText("Backends"))
	names := make([]string, 0, len(v.Backends))
	for name := range v.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		_, _ = fmt.Fprintf(w, "└─ %s\n", dimText("no successful conversions yet"))
	}
	for i, name := range names {
		branch := "├─"
		if i == len(names)-1 {
			branch = "└─"
		}
		b := v.Backends[name]
		line := fmt.Sprintf("%s %s: %d served", branch, name, b["served"])
		if b["degraded"] > 0 {
			line += " " + warnMark(fmt.Sprintf("(%d degraded)", b["degraded"]))
		}
		_, _ = fmt.Fprintln(w, line)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, boldText("Workspace"))
	_, _ = fmt.Fprintf(w, "├─ Root: %s\n", v.Workspace.Root)
	_, _ = fmt.Fprintf(w, "└─ Scratch dirs: %d (%s)\n", v.Workspace.Entries, formatter.Bytes(v.Workspace.Bytes))
}
