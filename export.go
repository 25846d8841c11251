// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package altium

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ExportCSV renders the component table as CSV: name, description, pad or
// pin count, primitive count.
func (l *Library) ExportCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"name", "description", "pads", "primitives"}
	if l.Kind == KindSchLib {
		header[2] = "pins"
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, c := range l.Components {
		row := []string{c.Name, c.Description, "0", "0"}
		if c.Footprint != nil {
			row[2] = strconv.Itoa(len(c.Footprint.Pads))
			row[3] = strconv.Itoa(c.Footprint.PrimitiveCount())
		}
		if c.Symbol != nil {
			row[2] = strconv.Itoa(len(c.Symbol.Pins))
			row[3] = strconv.Itoa(c.Symbol.PrimitiveCount())
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Summary renders an aligned text table of the library contents.
func (l *Library) Summary() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Kind:\t%s\n", l.Kind)
	fmt.Fprintf(w, "Components:\t%d\n", len(l.Components))
	if l.Models != nil {
		fmt.Fprintf(w, "Embedded models:\t%d\n", len(l.Models.Models))
	}
	for _, c := range l.Components {
		fmt.Fprintf(w, "  %s\t%s\n", c.Name, c.Description)
	}
	w.Flush()
	return buf.String()
}

// renderCanvas is a character raster with a millimetre window mapped onto
// it.
type renderCanvas struct {
	cells  [][]byte
	w, h   int
	minX   float64
	minY   float64
	scaleX float64
	scaleY float64
}

func newRenderCanvas(w, h int, minX, minY, maxX, maxY float64) *renderCanvas {
	if maxX-minX < 1e-9 {
		maxX = minX + 1
	}
	if maxY-minY < 1e-9 {
		maxY = minY + 1
	}
	c := &renderCanvas{w: w, h: h, minX: minX, minY: minY}
	c.scaleX = float64(w-1) / (maxX - minX)
	c.scaleY = float64(h-1) / (maxY - minY)
	c.cells = make([][]byte, h)
	for i := range c.cells {
		c.cells[i] = bytes.Repeat([]byte{'.'}, w)
	}
	return c
}

func (c *renderCanvas) plot(x, y float64, ch byte) {
	col := int(math.Round((x - c.minX) * c.scaleX))
	row := int(math.Round((y - c.minY) * c.scaleY))
	// The raster origin is top-left, the board origin bottom-left.
	row = c.h - 1 - row
	if col < 0 || col >= c.w || row < 0 || row >= c.h {
		return
	}
	c.cells[row][col] = ch
}

func (c *renderCanvas) line(x1, y1, x2, y2 float64, ch byte) {
	steps := int(math.Max(math.Abs(x2-x1)*c.scaleX, math.Abs(y2-y1)*c.scaleY)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.plot(x1+(x2-x1)*t, y1+(y2-y1)*t, ch)
	}
}

func (c *renderCanvas) fillRect(x1, y1, x2, y2 float64, ch byte) {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	stepX := 1 / c.scaleX
	stepY := 1 / c.scaleY
	for y := y1; y <= y2; y += stepY {
		for x := x1; x <= x2; x += stepX {
			c.plot(x, y, ch)
		}
	}
}

func (c *renderCanvas) String() string {
	var sb strings.Builder
	for _, row := range c.cells {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderFootprint rasterises the footprint into a character grid of the
// given size. Pads draw as '#', tracks as '*', arcs as 'o', fills as '+'.
func (fp *Footprint) RenderFootprint(width, height int) string {
	if width <= 0 {
		width = 60
	}
	if height <= 0 {
		height = 30
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	for _, p := range fp.Pads {
		grow(p.X.Mm()-p.TopXSize.Mm()/2, p.Y.Mm()-p.TopYSize.Mm()/2)
		grow(p.X.Mm()+p.TopXSize.Mm()/2, p.Y.Mm()+p.TopYSize.Mm()/2)
	}
	for _, t := range fp.Tracks {
		grow(t.X1.Mm(), t.Y1.Mm())
		grow(t.X2.Mm(), t.Y2.Mm())
	}
	for _, a := range fp.Arcs {
		grow(a.X.Mm()-a.Radius.Mm(), a.Y.Mm()-a.Radius.Mm())
		grow(a.X.Mm()+a.Radius.Mm(), a.Y.Mm()+a.Radius.Mm())
	}
	for _, f := range fp.Fills {
		grow(f.X1.Mm(), f.Y1.Mm())
		grow(f.X2.Mm(), f.Y2.Mm())
	}
	if math.IsInf(minX, 1) {
		return "(empty footprint)\n"
	}

	c := newRenderCanvas(width, height, minX, minY, maxX, maxY)
	for _, f := range fp.Fills {
		c.fillRect(f.X1.Mm(), f.Y1.Mm(), f.X2.Mm(), f.Y2.Mm(), '+')
	}
	for _, t := range fp.Tracks {
		c.line(t.X1.Mm(), t.Y1.Mm(), t.X2.Mm(), t.Y2.Mm(), '*')
	}
	for _, a := range fp.Arcs {
		start := a.StartAngle
		sweep := a.EndAngle - a.StartAngle
		if sweep <= 0 {
			sweep += 360
		}
		for i := 0; i <= 64; i++ {
			ang := (start + sweep*float64(i)/64) * math.Pi / 180
			c.plot(a.X.Mm()+a.Radius.Mm()*math.Cos(ang),
				a.Y.Mm()+a.Radius.Mm()*math.Sin(ang), 'o')
		}
	}
	for _, p := range fp.Pads {
		c.fillRect(p.X.Mm()-p.TopXSize.Mm()/2, p.Y.Mm()-p.TopYSize.Mm()/2,
			p.X.Mm()+p.TopXSize.Mm()/2, p.Y.Mm()+p.TopYSize.Mm()/2, '#')
		if len(p.Designator) == 1 {
			c.plot(p.X.Mm(), p.Y.Mm(), p.Designator[0])
		}
	}
	return c.String()
}

// RenderSymbol rasterises the symbol body and pins into a character grid.
func (s *Symbol) RenderSymbol(width, height int) string {
	if width <= 0 {
		width = 60
	}
	if height <= 0 {
		height = 30
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	for _, r := range s.Rectangles {
		grow(float64(r.X1), float64(r.Y1))
		grow(float64(r.X2), float64(r.Y2))
	}
	for _, p := range s.Pins {
		grow(float64(p.X), float64(p.Y))
		end := pinEnd(p)
		grow(float64(end.X), float64(end.Y))
	}
	for _, ln := range s.Lines {
		grow(float64(ln.X1), float64(ln.Y1))
		grow(float64(ln.X2), float64(ln.Y2))
	}
	if math.IsInf(minX, 1) {
		return "(empty symbol)\n"
	}

	c := newRenderCanvas(width, height, minX, minY, maxX, maxY)
	for _, r := range s.Rectangles {
		c.line(float64(r.X1), float64(r.Y1), float64(r.X2), float64(r.Y1), '-')
		c.line(float64(r.X1), float64(r.Y2), float64(r.X2), float64(r.Y2), '-')
		c.line(float64(r.X1), float64(r.Y1), float64(r.X1), float64(r.Y2), '|')
		c.line(float64(r.X2), float64(r.Y1), float64(r.X2), float64(r.Y2), '|')
	}
	for _, ln := range s.Lines {
		c.line(float64(ln.X1), float64(ln.Y1), float64(ln.X2), float64(ln.Y2), '*')
	}
	for _, p := range s.Pins {
		end := pinEnd(p)
		c.line(float64(p.X), float64(p.Y), float64(end.X), float64(end.Y), '=')
		if len(p.Designator) > 0 {
			c.plot(float64(end.X), float64(end.Y), p.Designator[0])
		}
	}
	return c.String()
}

func pinEnd(p *Pin) SchPoint {
	switch p.Orientation() {
	case PinRight:
		return SchPoint{X: int(p.X) + int(p.Length), Y: int(p.Y)}
	case PinLeft:
		return SchPoint{X: int(p.X) - int(p.Length), Y: int(p.Y)}
	case PinUp:
		return SchPoint{X: int(p.X), Y: int(p.Y) + int(p.Length)}
	default:
		return SchPoint{X: int(p.X), Y: int(p.Y) - int(p.Length)}
	}
}
