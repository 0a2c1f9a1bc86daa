package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/tracksim/tracksim/pkg/core"
)

// Positions are stored as EPSG:3857 XYZ points. SQLite has no spatial types,
// so geometry goes to the database as WKB and is read back with Scan.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseOrigin parses "lat,long" or "lat,long,alt" into a GeoOrigin.
func ParseOrigin(s string) (core.GeoOrigin, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return core.GeoOrigin{}, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.GeoOrigin{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	o := core.GeoOrigin{Latitude: vals[0], Longitude: vals[1]}
	if len(vals) > 2 {
		o.Altitude = vals[2]
	}
	if math.Abs(o.Latitude) >= 85 || math.Abs(o.Longitude) > 180 {
		return core.GeoOrigin{}, ErrInvalidCoordinates
	}
	return o, nil
}

// Projector places local simulation positions on the earth. Local +X is
// east and +Y is north of the origin.
type Projector struct {
	origin core.GeoOrigin
	x0, y0 float64
	// scale converts ground metres at the origin into Mercator metres.
	scale float64

	toMercator func(a, b, c float64) (float64, float64, float64)
	toLonLat   func(a, b, c float64) (float64, float64, float64)
}

// NewProjector builds a projector anchored at origin.
func NewProjector(origin core.GeoOrigin) *Projector {
	epsg := wgs84.EPSG()
	p := &Projector{
		origin:     origin,
		scale:      1 / math.Cos(origin.Latitude*math.Pi/180),
		toMercator: epsg.Transform(4326, 3857),
		toLonLat:   epsg.Transform(3857, 4326),
	}
	p.x0, p.y0, _ = p.toMercator(origin.Longitude, origin.Latitude, 0)
	return p
}

// Origin returns the anchor.
func (p *Projector) Origin() core.GeoOrigin { return p.origin }

// Mercator returns the EPSG:3857 point for a local position. Z is the
// altitude above the ellipsoid.
func (p *Projector) Mercator(pos core.Position3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.x0 + pos.X*p.scale, Y: p.y0 + pos.Y*p.scale},
		Z:    p.origin.Altitude + pos.Z,
		Type: geom.DimXYZ,
	})
}

// LonLat returns WGS84 longitude, latitude and altitude for a local position.
func (p *Projector) LonLat(pos core.Position3D) (lon, lat, alt float64) {
	lon, lat, _ = p.toLonLat(p.x0+pos.X*p.scale, p.y0+pos.Y*p.scale, 0)
	return lon, lat, p.origin.Altitude + pos.Z
}

// Local maps an EPSG:3857 point produced by Mercator back to the local frame.
func (p *Projector) Local(pt geom.Point) (core.Position3D, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	return core.Position3D{
		X: (c.XY.X - p.x0) / p.scale,
		Y: (c.XY.Y - p.y0) / p.scale,
		Z: c.Z - p.origin.Altitude,
	}, nil
}

// OriginFromMercator recovers a GeoOrigin from an EPSG:3857 point and the
// stored altitude.
func OriginFromMercator(pt geom.Point, altitude float64) (core.GeoOrigin, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.GeoOrigin{}, ErrInvalidCoordinates
	}
	lon, lat, _ := wgs84.EPSG().Transform(3857, 4326)(c.XY.X, c.XY.Y, 0)
	return core.GeoOrigin{Latitude: lat, Longitude: lon, Altitude: altitude}, nil
}
