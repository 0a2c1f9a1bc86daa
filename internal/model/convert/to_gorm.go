// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/tracksim/tracksim/internal/geo"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// toJSON marshals v, falling back to empty when v is nil or cannot be encoded.
func toJSON(v any, empty string) datatypes.JSON {
	if v == nil {
		return datatypes.JSON(empty)
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToVehicle builds the vehicle definition row for a session. Wheel and
// gear counts are read from the session's encoded vehicle config.
func CoreToVehicle(s core.Session, mass float64) model.Vehicle {
	v := model.Vehicle{
		Name:   s.VehicleName,
		Mass:   float32(mass),
		Config: datatypes.JSON("{}"),
	}
	if len(s.Config) > 0 {
		var cfg vehicle.Config
		if err := json.Unmarshal(s.Config, &cfg); err == nil {
			v.Wheels = uint16(len(cfg.Wheels))
			v.Gears = uint8(len(cfg.Gearbox.Gears))
			v.Config = datatypes.JSON(s.Config)
		}
	}
	return v
}

// CoreToSession converts a core.Session. The origin is stored as an
// EPSG:3857 point.
func CoreToSession(s core.Session) model.Session {
	origin := geo.NewProjector(s.Origin).Mercator(core.Position3D{})
	cfg := datatypes.JSON("{}")
	if len(s.Config) > 0 {
		cfg = datatypes.JSON(s.Config)
	}
	return model.Session{
		Name:      s.Name,
		StartTime: s.StartTime,
		TickRate:  float32(s.TickRate),
		Origin:    origin,
		Elevation: float32(s.Origin.Altitude),
		Tag:       s.Tag,
		Config:    cfg,
	}
}

func coreToTrack(t core.TrackSample) model.TrackState {
	return model.TrackState{
		AngularVelocity: float32(t.AngularVelocity),
		DriveTorque:     float32(t.DriveTorque),
		BrakeRatio:      float32(t.BrakeRatio),
		Load:            float32(t.Load),
		Contacts:        uint8(t.Contacts),
	}
}

// CoreToSample converts a core.Sample, projecting its position with p.
func CoreToSample(s core.Sample, p *geo.Projector) model.Sample {
	wheels := make([]model.WheelState, len(s.Wheels))
	for i, w := range s.Wheels {
		wheels[i] = model.WheelState{
			Index:        w.Index,
			Grounded:     w.Grounded,
			Compression:  float32(w.Compression),
			Load:         float32(w.Load),
			VisualLength: float32(w.VisualLength),
			Surface:      w.Surface,
		}
	}

	return model.Sample{
		Time:         s.Time,
		SessionID:    s.SessionID,
		Tick:         s.Tick,
		SimTime:      s.SimTime,
		Position:     p.Mercator(s.Position),
		Elevation:    float32(p.Origin().Altitude + s.Position.Z),
		Heading:      float32(s.Heading),
		Speed:        float32(s.Speed),
		YawRate:      float32(s.YawRate),
		Throttle:     float32(s.Throttle),
		Steering:     float32(s.Steering),
		Handbrake:    s.Handbrake,
		Gear:         uint8(s.Gear),
		Reverse:      s.Reverse,
		EngineRPM:    float32(s.EngineRPM),
		EngineTorque: float32(s.EngineTorque),
		Left:         coreToTrack(s.Left),
		Right:        coreToTrack(s.Right),
		Sleeping:     s.Sleeping,
		Wheels:       toJSON(wheels, "[]"),
	}
}

// CoreToEvent converts a core.Event.
func CoreToEvent(e core.Event) model.Event {
	return model.Event{
		Time:      e.Time,
		SessionID: e.SessionID,
		Tick:      e.Tick,
		SimTime:   e.SimTime,
		Kind:      e.Kind,
		Message:   e.Message,
		ExtraData: toJSON(e.ExtraData, "{}"),
	}
}

// CoreToTrack builds the driven path of a session from its positions. ok is
// false when there are fewer than two positions.
func CoreToTrack(sessionID uint, positions []core.Position3D, p *geo.Projector) (track model.SessionTrack, ok bool) {
	ls, err := p.Trajectory(positions)
	if err != nil {
		return model.SessionTrack{}, false
	}
	return model.SessionTrack{
		SessionID: sessionID,
		Path:      ls,
		Distance:  geo.PathLength(positions),
		Points:    uint32(len(positions)),
	}, true
}
