package client

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/fogleman/gg"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// Surface is the drawing surface the canvas renders onto.
type Surface interface {
	Stroke(seg models.Segment)
	Erase(seg models.Segment)
	Clear()
	Snapshot() image.Image
	Restore(img image.Image)
}

// RasterSurface is an in-memory RGBA surface.
type RasterSurface struct {
	dc         *gg.Context
	background color.Color
}

func NewRasterSurface(width, height int) *RasterSurface {
	s := &RasterSurface{
		dc:         gg.NewContext(width, height),
		background: color.White,
	}
	s.Clear()
	return s
}

func (s *RasterSurface) Stroke(seg models.Segment) {
	s.dc.SetHexColor(seg.Color)
	s.line(seg)
}

// Erase paints the segment in the background colour.
func (s *RasterSurface) Erase(seg models.Segment) {
	s.dc.SetColor(s.background)
	s.line(seg)
}

func (s *RasterSurface) line(seg models.Segment) {
	s.dc.SetLineCapRound()
	s.dc.SetLineJoinRound()
	s.dc.SetLineWidth(float64(seg.Width))
	s.dc.DrawLine(seg.X0, seg.Y0, seg.X1, seg.Y1)
	s.dc.Stroke()
}

func (s *RasterSurface) Clear() {
	s.dc.SetColor(s.background)
	s.dc.Clear()
}

// Snapshot returns a copy of the current pixels.
func (s *RasterSurface) Snapshot() image.Image {
	src := s.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Restore replaces the current pixels with img.
func (s *RasterSurface) Restore(img image.Image) {
	dst := s.dc.Image().(*image.RGBA)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
}

func (s *RasterSurface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}

func (s *RasterSurface) SavePNG(path string) error {
	return s.dc.SavePNG(path)
}
