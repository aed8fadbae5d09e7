package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// PDF renders an operation log as vector strokes, one point per canvas
// pixel. Every clear starts a new page, so the document reads as the board's
// history.
func PDF(w io.Writer, title string, ops []models.Operation, width, height int) error {
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(width), Ht: float64(height)},
	})
	p.SetTitle(title, true)
	p.SetCreator("collaborative-canvas", true)
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	p.AddPage()

	pens := models.NewPenTracker()
	for _, op := range ops {
		if op.Type == models.OpClear {
			p.AddPage()
			pens.Reset()
			continue
		}
		seg, ok := pens.Step(op)
		if !ok {
			continue
		}
		r, g, b := 255, 255, 255
		if seg.Tool != models.ToolErase {
			r, g, b = hexRGB(seg.Color)
		}
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(float64(seg.Width))
		p.Line(seg.X0, seg.Y0, seg.X1, seg.Y1)
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// hexRGB parses #RRGGBB, returning black for anything else.
func hexRGB(s string) (int, int, int) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
