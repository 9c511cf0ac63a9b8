package terrain

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	summitColor       = color.RGBA{220, 20, 60, 255}   // crimson
	saddleColor       = color.RGBA{30, 144, 255, 255}  // dodger blue
	disqualifiedColor = color.RGBA{128, 128, 128, 255} // grey
	linkerColor       = color.RGBA{255, 215, 0, 255}   // gold
	noDataColor       = color.RGBA{0, 0, 0, 255}
	legendBackground  = color.RGBA{255, 255, 255, 200}
)

// Renderer draws a grid and its features as a raster image. Each grid cell
// becomes a Scale x Scale block shaded by elevation.
type Renderer struct {
	Grid   Grid
	Result *Result
	// Scale is the pixel size of one cell. Values below 1 mean 1.
	Scale int
	// Legend draws feature counts in the top-left corner.
	Legend bool
}

// NewRenderer returns a renderer with legend enabled and a scale that
// keeps the longer grid side near 800 pixels.
func NewRenderer(g Grid, res *Result) *Renderer {
	side := max(g.MaxX(), g.MaxY()) + 1
	return &Renderer{Grid: g, Result: res, Scale: max(1, 800/side), Legend: true}
}

// Render draws the image.
func (r *Renderer) Render() *image.RGBA {
	scale := max(1, r.Scale)
	rows, cols := r.Grid.MaxX()+1, r.Grid.MaxY()+1
	img := image.NewRGBA(image.Rect(0, 0, cols*scale, rows*scale))

	lo, hi := elevationRange(r.Grid)
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			c := elevationColor(r.Grid.ElevationAt(x, y), lo, hi)
			for py := x * scale; py < (x+1)*scale; py++ {
				for px := y * scale; px < (y+1)*scale; px++ {
					img.SetRGBA(px, py, c)
				}
			}
		}
	}
	if r.Result == nil {
		return img
	}

	center := func(c Cell) (int, int) {
		return c.Y*scale + scale/2, c.X*scale + scale/2
	}
	for _, l := range r.Result.Linkers {
		cells := linkerCells(l)
		for i := 1; i < len(cells); i++ {
			x0, y0 := center(cells[i-1])
			x1, y1 := center(cells[i])
			drawLine(img, x0, y0, x1, y1, linkerColor)
		}
	}

	marker := max(3, scale)
	for _, s := range r.Result.Saddles {
		c := saddleColor
		if s.Disqualified {
			c = disqualifiedColor
		}
		px, py := center(s.Cell)
		drawSquare(img, px, py, marker, c)
	}
	for _, s := range r.Result.Summits {
		px, py := center(s.Cell)
		drawTriangle(img, px, py, marker+2, summitColor)
	}

	if r.Legend {
		r.drawLegend(img)
	}
	return img
}

// WritePNG encodes the rendered image to w.
func (r *Renderer) WritePNG(w io.Writer) error {
	if err := png.Encode(w, r.Render()); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// SavePNG writes the rendered image to path.
func (r *Renderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return r.WritePNG(f)
}

func elevationRange(g Grid) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for x := 0; x <= g.MaxX(); x++ {
		for y := 0; y <= g.MaxY(); y++ {
			v := g.ElevationAt(x, y)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

// elevationColor maps v onto a green-to-brown-to-white ramp.
func elevationColor(v, lo, hi float64) color.RGBA {
	if math.IsNaN(v) {
		return noDataColor
	}
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	stops := [...]color.RGBA{
		{34, 139, 34, 255},   // lowland green
		{189, 183, 107, 255}, // khaki
		{139, 90, 43, 255},   // brown
		{250, 250, 250, 255}, // snow
	}
	pos := t * float64(len(stops)-1)
	i := min(int(pos), len(stops)-2)
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	lerp := func(p, q uint8) uint8 { return uint8(float64(p) + (float64(q)-float64(p))*f) }
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

func (r *Renderer) drawLegend(img *image.RGBA) {
	lines := []struct {
		text string
		c    color.RGBA
	}{
		{fmt.Sprintf("Summits: %d", len(r.Result.Summits)), summitColor},
		{fmt.Sprintf("Saddles: %d", len(r.Result.QualifiedSaddles())), saddleColor},
		{fmt.Sprintf("Disqualified: %d", len(r.Result.Saddles)-len(r.Result.QualifiedSaddles())), disqualifiedColor},
		{fmt.Sprintf("Linkers: %d", len(r.Result.Linkers)), linkerColor},
	}
	const lineHeight = 16
	width := 150
	height := len(lines)*lineHeight + 8
	for y := 0; y < height && y < img.Bounds().Max.Y; y++ {
		for x := 0; x < width && x < img.Bounds().Max.X; x++ {
			img.Set(x, y, legendBackground)
		}
	}
	for i, l := range lines {
		y := 6 + i*lineHeight + lineHeight/2
		drawSquare(img, 10, y, 8, l.c)
		drawText(img, 20, y+4, l.text, color.RGBA{0, 0, 0, 255})
	}
}

func inBounds(img *image.RGBA, x, y int) bool {
	b := img.Bounds()
	return x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y
}

func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			if inBounds(img, cx+dx, cy+dy) {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawTriangle draws an upward-pointing filled triangle centered on (cx, cy).
func drawTriangle(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		width := int(float64(dy+half) / float64(size) * float64(half))
		for dx := -width; dx <= width; dx++ {
			if inBounds(img, cx+dx, cy+dy) {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine is Bresenham's line algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if inBounds(img, x0, y0) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
