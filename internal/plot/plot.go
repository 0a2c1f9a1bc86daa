// Package plot renders charts of recorded sessions.
package plot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/tracksim/tracksim/internal/storage/memory"
)

// ErrNoFrames is returned for a session without samples.
var ErrNoFrames = errors.New("export has no frames")

const dpi = 96

type panel struct {
	column string
	label  string
}

var drivePanels = []panel{
	{"speed", "speed (m/s)"},
	{"rpm", "engine (rpm)"},
	{"gear", "gear"},
}

func series(exp *memory.SessionExport, xCol, yCol string) (plotter.XYs, error) {
	xs, ys := exp.Column(xCol), exp.Column(yCol)
	if xs == nil || ys == nil {
		return nil, fmt.Errorf("export has no %s/%s columns", xCol, yCol)
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts, nil
}

func linePlot(title, xLabel, yLabel string, pts plotter.XYs) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	return p, nil
}

// Drive renders speed, engine RPM and gear over simulated time as stacked
// panels into a PNG at out.
func Drive(exp *memory.SessionExport, out string) error {
	if len(exp.Frames) == 0 {
		return ErrNoFrames
	}

	plots := make([][]*plot.Plot, len(drivePanels))
	for i, pn := range drivePanels {
		pts, err := series(exp, "simTime", pn.column)
		if err != nil {
			return err
		}
		title := ""
		if i == 0 {
			title = fmt.Sprintf("%s (%s)", exp.SessionName, exp.VehicleName)
		}
		p, err := linePlot(title, "time (s)", pn.label, pts)
		if err != nil {
			return err
		}
		plots[i] = []*plot.Plot{p}
	}

	c := vgimg.NewWith(vgimg.UseWH(8*vg.Inch, 9*vg.Inch), vgimg.UseDPI(dpi))
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows: len(plots),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 3 * vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	return writePNG(c, out)
}

// Track renders the ground path in local metres.
func Track(exp *memory.SessionExport, out string) error {
	if len(exp.Frames) == 0 {
		return ErrNoFrames
	}
	pts, err := series(exp, "x", "y")
	if err != nil {
		return err
	}
	p, err := linePlot(exp.SessionName+" path", "x (m)", "y (m)", pts)
	if err != nil {
		return err
	}

	c := vgimg.NewWith(vgimg.UseWH(7*vg.Inch, 7*vg.Inch), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))
	return writePNG(c, out)
}

func writePNG(c *vgimg.Canvas, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// File reads an export from path and renders Drive to out.
func File(path, out string) error {
	exp, err := memory.ReadExport(path)
	if err != nil {
		return err
	}
	return Drive(exp, out)
}
