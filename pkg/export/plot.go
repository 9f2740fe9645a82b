package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/network"
)

// PlotOptions controls the debug plot.
type PlotOptions struct {
	Width, Height vg.Length
	Raw           bool // draw raw pixel paths under the smoothed ones
	Labels        bool // label sensors with their gate names
}

// DefaultPlotOptions returns a 10x10 inch plot with raw paths and labels.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 10 * vg.Inch, Height: 10 * vg.Inch, Raw: true, Labels: true}
}

var (
	outlineColor = color.RGBA{R: 190, G: 190, B: 190, A: 255}
	rawColor     = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	sensorColor  = color.RGBA{R: 200, G: 30, B: 30, A: 255}
)

// NewPlot draws the network. Image rows grow downwards, so y is negated to
// keep the plot the same way up as the map. mask may be nil.
func NewPlot(n *network.Network, mask bitmap.Traversable, opts PlotOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d sensors, %d edges", len(n.Sensors), len(n.SmoothPaths))
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "-y (px)"

	if mask != nil {
		if pts := outline(mask); len(pts) > 0 {
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, fmt.Errorf("outline: %w", err)
			}
			s.GlyphStyle.Shape = draw.BoxGlyph{}
			s.GlyphStyle.Radius = vg.Points(0.5)
			s.GlyphStyle.Color = outlineColor
			p.Add(s)
			p.Legend.Add("road edge", s)
		}
	}

	edges := n.Adjacency.Edges()
	palette := generateColors(len(edges))

	if opts.Raw {
		for i, k := range edges {
			raw := n.Paths[k]
			if len(raw) < 2 {
				continue
			}
			pts := make(plotter.XYs, len(raw))
			for j, px := range raw {
				pts[j] = plotter.XY{X: float64(px.X), Y: -float64(px.Y)}
			}
			l, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("raw %s: %w", k, err)
			}
			l.Width = vg.Points(0.5)
			l.Color = rawColor
			p.Add(l)
			if i == 0 {
				p.Legend.Add("raw", l)
			}
		}
	}

	for i, k := range edges {
		ls := n.SmoothPaths[k]
		if len(ls) < 2 {
			continue
		}
		l, err := plotter.NewLine(lineXYs(ls))
		if err != nil {
			return nil, fmt.Errorf("smoothed %s: %w", k, err)
		}
		l.Width = vg.Points(1)
		l.Color = palette[i]
		p.Add(l)
	}

	if len(n.Sensors) > 0 {
		pts := make(plotter.XYs, len(n.Sensors))
		names := make([]string, len(n.Sensors))
		for i, s := range n.Sensors {
			pts[i] = plotter.XY{X: float64(s.X), Y: -float64(s.Y)}
			names[i] = string(s.ID)
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("sensors: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Color = sensorColor
		p.Add(s)
		p.Legend.Add("sensor", s)

		if opts.Labels {
			labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: names})
			if err != nil {
				return nil, fmt.Errorf("labels: %w", err)
			}
			p.Add(labels)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// AddTrajectory draws ls over p as a thick dark line.
func AddTrajectory(p *plot.Plot, ls orb.LineString, label string) error {
	if len(ls) < 2 {
		return nil
	}
	l, err := plotter.NewLine(lineXYs(ls))
	if err != nil {
		return fmt.Errorf("trajectory: %w", err)
	}
	l.Width = vg.Points(3)
	l.Color = color.Black
	p.Add(l)
	if label != "" {
		p.Legend.Add(label, l)
	}
	return nil
}

// WritePNG renders the plot as PNG to w.
func WritePNG(w io.Writer, n *network.Network, mask bitmap.Traversable, opts PlotOptions) error {
	p, err := NewPlot(n, mask, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePlot renders the plot to path. The format follows the file extension.
func SavePlot(path string, n *network.Network, mask bitmap.Traversable, opts PlotOptions) error {
	p, err := NewPlot(n, mask, opts)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

func lineXYs(ls orb.LineString) plotter.XYs {
	pts := make(plotter.XYs, len(ls))
	for i, pt := range ls {
		pts[i] = plotter.XY{X: pt[0], Y: -pt[1]}
	}
	return pts
}

// outline returns traversable pixels with at least one blocked or
// out-of-bounds 4-neighbour.
func outline(mask bitmap.Traversable) plotter.XYs {
	w, h := mask.Width(), mask.Height()
	open := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask.IsTraversable(x, y)
	}
	var pts plotter.XYs
	for y := range h {
		for x := range w {
			if !open(x, y) {
				continue
			}
			if !open(x-1, y) || !open(x+1, y) || !open(x, y-1) || !open(x, y+1) {
				pts = append(pts, plotter.XY{X: float64(x), Y: -float64(y)})
			}
		}
	}
	return pts
}

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range n {
		h := float64(i) / float64(max(n, 1))
		r, g, b := hueToRGB(h)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hueToRGB converts a hue in [0, 1) at full saturation and 80% value.
func hueToRGB(h float64) (uint8, uint8, uint8) {
	const v = 0.8
	h6 := h * 6
	sector := int(h6) % 6
	f := h6 - float64(int(h6))
	q := v * (1 - f)
	t := v * f
	var r, g, b float64
	switch sector {
	case 0:
		r, g, b = v, t, 0
	case 1:
		r, g, b = q, v, 0
	case 2:
		r, g, b = 0, v, t
	case 3:
		r, g, b = 0, q, v
	case 4:
		r, g, b = t, 0, v
	default:
		r, g, b = v, 0, q
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}
