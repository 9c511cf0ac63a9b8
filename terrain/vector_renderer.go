package terrain

import (
	"fmt"
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer renders features and linker paths as vector graphics.
// Canvas units are millimeters; north is up.
type VectorRenderer struct {
	Grid   Grid
	Result *Result
	// CellSize is the drawn size of one grid cell in millimeters.
	CellSize float64
	// Padding is the border around the grid in millimeters.
	Padding float64
	// GridSpacing draws dashed guide lines every GridSpacing cells; 0 disables.
	GridSpacing int
	// ShowPlateaus fills the cells of plateau features.
	ShowPlateaus bool
	// Resolution is used for PNG output.
	Resolution canvas.Resolution
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(g Grid, res *Result) *VectorRenderer {
	return &VectorRenderer{
		Grid:         g,
		Result:       res,
		CellSize:     10,
		Padding:      20,
		GridSpacing:  10,
		ShowPlateaus: true,
		Resolution:   canvas.DPI(150),
	}
}

type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

func (r *VectorRenderer) size() (width, height float64) {
	return float64(r.Grid.MaxY()+1)*r.CellSize + 2*r.Padding,
		float64(r.Grid.MaxX()+1)*r.CellSize + 2*r.Padding
}

// RenderToSVG writes the drawing as SVG to w.
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.size()
	s := svg.New(w, width, height, nil)
	r.renderToCanvas(s, width, height)
	if err := s.Close(); err != nil {
		return fmt.Errorf("closing SVG: %w", err)
	}
	return nil
}

// RenderToPNG rasterizes the drawing and writes it as PNG to w.
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.size()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)
	return png.Encode(w, rast)
}

// toCanvas returns the canvas position of the center of cell (x, y).
func (r *VectorRenderer) toCanvas(x, y int) (float64, float64) {
	cx := r.Padding + (float64(y)+0.5)*r.CellSize
	cy := r.Padding + (float64(r.Grid.MaxX()-x)+0.5)*r.CellSize
	return cx, cy
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bg, canvas.Identity)

	if r.GridSpacing > 0 {
		r.renderGuides(renderer)
	}
	if r.Result == nil {
		return
	}

	if r.ShowPlateaus {
		plateau := canvas.DefaultStyle
		plateau.Fill = canvas.Paint{Color: color.RGBA{200, 200, 200, 255}}
		plateau.Stroke = canvas.Paint{Color: canvas.Transparent}
		for _, f := range NewCollection(r.Result.Summits, r.Result.Saddles).Points {
			p := f.Spot().Plateau
			if p == nil {
				continue
			}
			for _, c := range p.Cells {
				cx, cy := r.toCanvas(c.X, c.Y)
				half := r.CellSize / 2
				cell := canvas.Rectangle(r.CellSize, r.CellSize).Translate(cx-half, cy-half)
				renderer.RenderPath(cell, plateau, canvas.Identity)
			}
		}
	}

	linker := canvas.DefaultStyle
	linker.Fill = canvas.Paint{Color: canvas.Transparent}
	linker.Stroke = canvas.Paint{Color: linkerColor}
	linker.StrokeWidth = r.CellSize / 5
	for _, l := range r.Result.Linkers {
		cells := linkerCells(l)
		if len(cells) < 2 {
			continue
		}
		p := &canvas.Path{}
		for i, c := range cells {
			cx, cy := r.toCanvas(c.X, c.Y)
			if i == 0 {
				p.MoveTo(cx, cy)
			} else {
				p.LineTo(cx, cy)
			}
		}
		renderer.RenderPath(p, linker, canvas.Identity)
	}

	marker := r.CellSize * 0.4
	for _, s := range r.Result.Saddles {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: saddleColor}
		if s.Disqualified {
			style.Fill = canvas.Paint{Color: disqualifiedColor}
		}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = 0.5
		cx, cy := r.toCanvas(s.Cell.X, s.Cell.Y)
		renderer.RenderPath(diamond(marker).Translate(cx, cy), style, canvas.Identity)
	}

	summit := canvas.DefaultStyle
	summit.Fill = canvas.Paint{Color: summitColor}
	summit.Stroke = canvas.Paint{Color: canvas.Black}
	summit.StrokeWidth = 0.5
	for _, s := range r.Result.Summits {
		cx, cy := r.toCanvas(s.Cell.X, s.Cell.Y)
		renderer.RenderPath(triangle(marker).Translate(cx, cy), summit, canvas.Identity)
		if s.Edge {
			ring := canvas.DefaultStyle
			ring.Fill = canvas.Paint{Color: canvas.Transparent}
			ring.Stroke = canvas.Paint{Color: summitColor}
			ring.StrokeWidth = 0.5
			ring.Dashes = []float64{1, 1}
			renderer.RenderPath(canvas.Circle(marker*1.5).Translate(cx, cy), ring, canvas.Identity)
		}
	}
}

func (r *VectorRenderer) renderGuides(renderer canvasRenderer) {
	style := canvas.DefaultStyle
	style.Fill = canvas.Paint{Color: canvas.Transparent}
	style.Stroke = canvas.Paint{Color: canvas.Gray}
	style.StrokeWidth = 0.3
	style.Dashes = []float64{2, 2}

	w := float64(r.Grid.MaxY()+1) * r.CellSize
	h := float64(r.Grid.MaxX()+1) * r.CellSize
	for y := 0; y <= r.Grid.MaxY()+1; y += r.GridSpacing {
		p := &canvas.Path{}
		x0 := r.Padding + float64(y)*r.CellSize
		p.MoveTo(x0, r.Padding)
		p.LineTo(x0, r.Padding+h)
		renderer.RenderPath(p, style, canvas.Identity)
	}
	for x := 0; x <= r.Grid.MaxX()+1; x += r.GridSpacing {
		p := &canvas.Path{}
		y0 := r.Padding + h - float64(x)*r.CellSize
		p.MoveTo(r.Padding, y0)
		p.LineTo(r.Padding+w, y0)
		renderer.RenderPath(p, style, canvas.Identity)
	}
}

// triangle is an upward triangle centered on the origin.
func triangle(size float64) *canvas.Path {
	p := &canvas.Path{}
	p.MoveTo(0, size)
	p.LineTo(size, -size)
	p.LineTo(-size, -size)
	p.Close()
	return p
}

func diamond(size float64) *canvas.Path {
	p := &canvas.Path{}
	p.MoveTo(0, size)
	p.LineTo(size, 0)
	p.LineTo(0, -size)
	p.LineTo(-size, 0)
	p.Close()
	return p
}
