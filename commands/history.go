package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/commands/formatter"
	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Output integrity as reported by --verify.
const (
	integrityOK       = "ok"
	integrityModified = "modified"
	integrityMissing  = "missing"
)

type historyEntry struct {
	*models.JobRecord
	Integrity string `json:"integrity,omitempty"`
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		state  string
		limit  int
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "Show past conversions, or the details of one conversion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tracker, err := a.openHistory()
			if err != nil {
				return err
			}
			defer closeHistory(tracker)

			if len(args) == 1 {
				rec, err := tracker.GetJobByID(args[0])
				if err != nil {
					return err
				}
				return a.printJobDetail(historyEntry{JobRecord: rec, Integrity: integrity(rec, verify)})
			}

			recs, err := tracker.ListJobs(state, limit)
			if err != nil {
				return err
			}
			entries := make([]historyEntry, 0, len(recs))
			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				e := historyEntry{JobRecord: rec, Integrity: integrity(rec, verify)}
				entries = append(entries, e)
				row := []string{
					rec.ID,
					formatter.Truncate(rec.InputPath, 36),
					rec.TargetExt,
					stateLabel(rec.State, rec.Degraded),
					rec.Backend,
					rec.CreatedAt.Local().Format(time.DateTime),
				}
				if verify {
					row = append(row, integrityLabel(e.Integrity))
				}
				rows = append(rows, row)
			}

			headers := []string{"ID", "INPUT", "TARGET", "STATE", "BACKEND", "CREATED"}
			if verify {
				headers = append(headers, "OUTPUT")
			}
			return a.out.Print(headers, rows, entries)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "only show jobs in this state (succeeded, failed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", constants.DefaultHistoryLimit, "maximum number of jobs to show")
	cmd.Flags().BoolVar(&verify, "verify", false, "check recorded outputs against their checksums")
	return cmd
}

// integrity compares a succeeded job's output with its recorded checksum.
func integrity(rec *models.JobRecord, verify bool) string {
	if !verify || rec.State != constants.JobStateSucceeded || rec.OutputChecksum == "" {
		return ""
	}
	if !utils.FileExists(rec.OutputPath) {
		return integrityMissing
	}
	ok, err := utils.VerifyFileSHA256(rec.OutputPath, rec.OutputChecksum)
	if err != nil || !ok {
		return integrityModified
	}
	return integrityOK
}

func integrityLabel(s string) string {
	switch s {
	case integrityOK:
		return okMark(s)
	case integrityModified, integrityMissing:
		return failMark(s)
	default:
		return dimText("-")
	}
}

func (a *app) printJobDetail(e historyEntry) error {
	if !a.out.IsTable() {
		if a.out.Format() == formatter.FormatCSV {
			return errors.New("csv output is not available for a single job")
		}
		return a.out.PrintJSON(e)
	}

	rec := e.JobRecord
	w := a.stdout
	_, _ = fmt.Fprintf(w, "%s %s\n", boldText("Job"), rec.ID)
	_, _ = fmt.Fprintf(w, "├─ Input: %s\n", rec.InputPath)
	_, _ = fmt.Fprintf(w, "├─ Output: %s\n", rec.OutputPath)
	_, _ = fmt.Fprintf(w, "├─ Category: %s (%s, %s)\n", rec.Category, rec.DetectedFormat, rec.Confidence)
	_, _ = fmt.Fprintf(w, "├─ State: %s\n", stateLabel(rec.State, rec.Degraded))
	if rec.Note != "" {
		_, _ = fmt.Fprintf(w, "├─ Note: %s\n", rec.Note)
	}
	if rec.ErrorKind != "" {
		_, _ = fmt.Fprintf(w, "├─ Error: %s\n", failMark(rec.ErrorMessage))
	}
	if rec.OutputSize > 0 {
		_, _ = fmt.Fprintf(w, "├─ Size: %s\n", formatter.Bytes(rec.OutputSize))
	}
	if e.Integrity != "" {
		_, _ = fmt.Fprintf(w, "├─ Integrity: %s\n", integrityLabel(e.Integrity))
	}
	if rec.RetryCount > 0 {
		_, _ = fmt.Fprintf(w, "├─ Retries: %d\n", rec.RetryCount)
	}
	created := rec.CreatedAt.Local().Format(time.DateTime)
	if rec.StartedAt != nil && rec.CompletedAt != nil {
		created += fmt.Sprintf(" (took %s)", rec.CompletedAt.Sub(*rec.StartedAt).Round(time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "└─ Created: %s\n", created)
	return nil
}
