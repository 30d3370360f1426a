package commands

import (
	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/internal/catalog"
	"github.com/Qwejay/Qconverto/internal/classifier"
	"github.com/Qwejay/Qconverto/internal/signature"
	"github.com/Qwejay/Qconverto/models"
)

type classification struct {
	*models.ClassificationResult
	Recommended string `json:"recommended,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

func newClassifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Identify files by content and show the recommended target",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cat := catalog.Default()
			cls := classifier.New(signature.Default(), cat, a.cfg.Pipeline.HeaderSize)

			views := make([]classification, 0, len(args))
			rows := make([][]string, 0, len(args))
			for _, path := range args {
				v := classification{ClassificationResult: &models.ClassificationResult{Path: path}}
				res, err := cls.Classify(path)
				if res != nil {
					v.ClassificationResult = res
				}
				if err != nil {
					v.Error = err.Error()
					v.ErrorKind = string(models.KindOf(err))
				} else if rec, recErr := cat.Recommend(res.Category); recErr == nil {
					v.Recommended = rec
				}
				views = append(views, v)

				status := string(v.Confidence)
				if v.Error != "" {
					status = failMark(v.ErrorKind)
				}
				rows = append(rows, []string{path, string(v.Category), v.DetectedFormat, status, v.Recommended})
			}

			return a.out.Print([]string{"FILE", "CATEGORY", "FORMAT", "CONFIDENCE", "RECOMMENDED"}, rows, views)
		},
	}
}
