package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/internal/config"
	"github.com/Qwejay/Qconverto/models"
)

type validationView struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		file string
		show bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		// The file under test is loaded by RunE; a broken file must not abort setup.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, false)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if file == "" {
				file = a.configPath
			}
			cfg, err := config.Load(file)
			if err != nil {
				return err
			}

			problems := validationProblems(cfg)
			name := file
			if name == "" {
				name = "(defaults)"
			}
			view := validationView{File: name, Valid: len(problems) == 0, Errors: problems}

			if !a.out.IsTable() {
				if err := a.out.PrintJSON(view); err != nil {
					return err
				}
			} else {
				a.printValidation(view)
				if show && view.Valid {
					data, err := cfg.ToYAML()
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(a.stdout, "\n%s", data)
				}
			}
			if !view.Valid {
				return fmt.Errorf("configuration has %d problem(s)", len(problems))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "config file to validate (default: --config or ./qconverto.yaml)")
	cmd.Flags().BoolVar(&show, "show", false, "print the effective configuration when valid")
	return cmd
}

// validationProblems runs field validation and checks that chains resolve.
func validationProblems(cfg *models.Config) []string {
	var problems []string
	if err := cfg.Validate(); err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			for _, v := range verrs {
				problems = append(problems, v.Error())
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	if _, err := backend.MergeChains(cfg.Pipeline.Chains); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}

func (a *app) printValidation(v validationView) {
	if v.Valid {
		_, _ = fmt.Fprintf(a.stdout, "%s %s is valid\n", okMark("✓"), v.File)
		return
	}
	_, _ = fmt.Fprintf(a.stdout, "%s %s has %d problem(s)\n", failMark("✗"), v.File, len(v.Errors))
	for i, e := range v.Errors {
		_, _ = fmt.Fprintf(a.stdout, "  %d. %s\n", i+1, e)
	}
}
