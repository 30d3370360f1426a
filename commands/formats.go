package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/internal/catalog"
	"github.com/Qwejay/Qconverto/models"
)

type formatView struct {
	Category    models.Category `json:"category"`
	Inputs      []string        `json:"inputs"`
	Outputs     []string        `json:"outputs"`
	Recommended string          `json:"recommended"`
	Chain       []string        `json:"chain"`
}

func newFormatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats [category]",
		Short: "List supported input and output formats per category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cat := catalog.Default()
			chains, err := backend.MergeChains(a.cfg.Pipeline.Chains)
			if err != nil {
				return err
			}

			categories := cat.Categories()
			if len(args) == 1 {
				c, err := models.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []models.Category{c}
			}

			var views []formatView
			var rows [][]string
			for _, c := range categories {
				rec, _ := cat.Recommend(c)
				v := formatView{
					Category:    c,
					Inputs:      cat.AllowedInputs(c),
					Outputs:     cat.AllowedOutputs(c),
					Recommended: rec,
					Chain:       chains[c],
				}
				views = append(views, v)
				rows = append(rows, []string{
					string(c),
					strings.Join(v.Inputs, " "),
					strings.Join(v.Outputs, " "),
					boldText(v.Recommended),
					strings.Join(v.Chain, " → "),
				})
			}

			return a.out.Print([]string{"CATEGORY", "INPUTS", "OUTPUTS", "RECOMMENDED", "BACKENDS"}, rows, views)
		},
	}
}
