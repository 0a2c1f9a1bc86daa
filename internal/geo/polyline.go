package geo

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/tracksim/tracksim/pkg/core"
)

// Trajectory builds an EPSG:3857 XYZ line string from local positions.
func (p *Projector) Trajectory(positions []core.Position3D) (geom.LineString, error) {
	if len(positions) < 2 {
		return geom.LineString{}, fmt.Errorf("trajectory must have at least 2 points, got %d", len(positions))
	}

	flat := make([]float64, 0, len(positions)*3)
	for _, pos := range positions {
		c, _ := p.Mercator(pos).Coordinates()
		flat = append(flat, c.XY.X, c.XY.Y, c.Z)
	}

	seq := geom.NewSequence(flat, geom.DimXYZ)
	return geom.NewLineString(seq), nil
}

// PathLength is the 2D ground distance along positions in metres.
func PathLength(positions []core.Position3D) float64 {
	var d float64
	for i := 1; i < len(positions); i++ {
		a, b := positions[i-1], positions[i]
		d += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return d
}
