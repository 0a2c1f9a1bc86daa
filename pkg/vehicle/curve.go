package vehicle

import (
	"gonum.org/v1/gonum/interp"
)

// torqueCurve is a piecewise-linear torque over RPM lookup that clamps to its
// boundary samples.
type torqueCurve struct {
	pl       interp.PiecewiseLinear
	min, max float64
	first    float64
	last     float64
}

func newTorqueCurve(points []CurvePoint) (*torqueCurve, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.RPM
		ys[i] = p.Torque
	}
	c := &torqueCurve{
		min:   xs[0],
		max:   xs[len(xs)-1],
		first: ys[0],
		last:  ys[len(ys)-1],
	}
	if err := c.pl.Fit(xs, ys); err != nil {
		return nil, configErr("engine.torqueCurve", "%v", err)
	}
	return c, nil
}

// At returns the torque at rpm. Outside the sampled domain it returns the
// nearest boundary sample.
func (c *torqueCurve) At(rpm float64) float64 {
	switch {
	case !finite(rpm), rpm <= c.min:
		return c.first
	case rpm >= c.max:
		return c.last
	}
	return c.pl.Predict(rpm)
}
