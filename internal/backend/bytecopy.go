package backend

import (
	"context"
	"fmt"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/utils"
)

// ByteCopy is the last-resort strategy: it copies the input verbatim under the target name.
// Its successes are always degraded.
type ByteCopy struct{}

// NewByteCopy creates the byte-copy strategy.
func NewByteCopy() *ByteCopy {
	return &ByteCopy{}
}

// Name implements Strategy.
func (b *ByteCopy) Name() string { return constants.StrategyByteCopy }

// Kind implements Strategy.
func (b *ByteCopy) Kind() Kind { return KindByteCopy }

// Attempt implements Strategy.
func (b *ByteCopy) Attempt(ctx context.Context, req Request, progress ProgressFunc) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	progress(0)
	if err := utils.CopyFile(req.InputPath, req.OutputPath); err != nil {
		return Outcome{}, fmt.Errorf("failed to copy input: %w", err)
	}
	progress(100)

	note := "content was copied without conversion"
	if req.InputExt != req.TargetExt {
		note = fmt.Sprintf("%s content was copied without conversion and only renamed to %s", req.InputExt, req.TargetExt)
	}
	return Outcome{Degraded: true, Note: note}, nil
}
