package convert

import (
	"encoding/json"

	"github.com/tracksim/tracksim/internal/geo"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/pkg/core"
)

// SessionToCore converts a GORM Session back to a core.Session.
func SessionToCore(s model.Session) core.Session {
	origin, err := geo.OriginFromMercator(s.Origin, float64(s.Elevation))
	if err != nil {
		origin = core.GeoOrigin{Altitude: float64(s.Elevation)}
	}
	return core.Session{
		ID:          s.ID,
		Name:        s.Name,
		VehicleName: s.Vehicle.Name,
		StartTime:   s.StartTime,
		TickRate:    float64(s.TickRate),
		Origin:      origin,
		Tag:         s.Tag,
		Config:      []byte(s.Config),
	}
}

func trackToCore(t model.TrackState) core.TrackSample {
	return core.TrackSample{
		AngularVelocity: float64(t.AngularVelocity),
		DriveTorque:     float64(t.DriveTorque),
		BrakeRatio:      float64(t.BrakeRatio),
		Load:            float64(t.Load),
		Contacts:        int(t.Contacts),
	}
}

// SampleToCore converts a GORM Sample back to the local frame of p.
// Values are float32 in the database, so the round trip loses precision.
func SampleToCore(s model.Sample, p *geo.Projector) core.Sample {
	pos, _ := p.Local(s.Position)

	var wheels []model.WheelState
	if len(s.Wheels) > 0 {
		_ = json.Unmarshal(s.Wheels, &wheels)
	}
	var coreWheels []core.WheelSample
	for _, w := range wheels {
		coreWheels = append(coreWheels, core.WheelSample{
			Index:        w.Index,
			Grounded:     w.Grounded,
			Compression:  float64(w.Compression),
			Load:         float64(w.Load),
			VisualLength: float64(w.VisualLength),
			Surface:      w.Surface,
		})
	}

	return core.Sample{
		SessionID:    s.SessionID,
		Tick:         s.Tick,
		Time:         s.Time,
		SimTime:      s.SimTime,
		Position:     pos,
		Heading:      float64(s.Heading),
		Speed:        float64(s.Speed),
		YawRate:      float64(s.YawRate),
		Throttle:     float64(s.Throttle),
		Steering:     float64(s.Steering),
		Handbrake:    s.Handbrake,
		Gear:         int(s.Gear),
		Reverse:      s.Reverse,
		EngineRPM:    float64(s.EngineRPM),
		EngineTorque: float64(s.EngineTorque),
		Left:         trackToCore(s.Left),
		Right:        trackToCore(s.Right),
		Sleeping:     s.Sleeping,
		Wheels:       coreWheels,
	}
}

// EventToCore converts a GORM Event to a core.Event.
func EventToCore(e model.Event) core.Event {
	var extra map[string]any
	if len(e.ExtraData) > 0 {
		_ = json.Unmarshal(e.ExtraData, &extra)
	}
	return core.Event{
		SessionID: e.SessionID,
		Tick:      e.Tick,
		Time:      e.Time,
		SimTime:   e.SimTime,
		Kind:      e.Kind,
		Message:   e.Message,
		ExtraData: extra,
	}
}
