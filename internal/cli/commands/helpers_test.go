package commands

import (
	"io"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
)

func newTestRenderer(out, errOut io.Writer) *output.Renderer {
	return output.NewRendererWithTTY(out, errOut, false, output.ModeText)
}
