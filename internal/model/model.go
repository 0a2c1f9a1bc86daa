package model

import (
	"errors"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Vehicle{},
	&Session{},
	&Sample{},
	&Event{},
	&SessionTrack{},
	&Performance{},
}

// DatabaseModelsSQLite leaves out tables that need PostGIS line geometry.
var DatabaseModelsSQLite = []any{
	&Vehicle{},
	&Session{},
	&Sample{},
	&Event{},
	&Performance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// Performance is a periodic snapshot of the simulation loop and writer health.
type Performance struct {
	Time                time.Time    `json:"time" gorm:"type:timestamptz;index:idx_performance_time"`
	SessionID           uint         `json:"sessionId" gorm:"index:idx_performance_session_id"`
	Session             Session      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Queues              QueueLengths `json:"queues" gorm:"embedded;embeddedPrefix:queue_"`
	TicksPerSecond      float32      `json:"ticksPerSecond"`
	LastTickDurationUs  float32      `json:"lastTickDurationUs"`
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
	Sleeping            bool         `json:"sleeping"`
}

func (*Performance) TableName() string {
	return "performances"
}

// QueueLengths are the pending write queue sizes.
type QueueLengths struct {
	Samples  uint32 `json:"samples"`
	Events   uint32 `json:"events"`
	Commands uint32 `json:"commands"`
	Dropped  uint64 `json:"dropped"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Vehicle is a named vehicle definition. Sessions reference it by name.
type Vehicle struct {
	gorm.Model
	Name     string         `json:"name" gorm:"size:127;uniqueIndex"`
	Wheels   uint16         `json:"wheels"`
	Mass     float32        `json:"mass"`
	Gears    uint8          `json:"gears"`
	Config   datatypes.JSON `json:"config" gorm:"type:jsonb;default:'{}'"`
	Sessions []Session
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// GetOrInsert loads the vehicle by name, inserting it when missing.
func (v *Vehicle) GetOrInsert(db *gorm.DB) (created bool, err error) {
	var existing Vehicle
	err = db.Where("name = ?", v.Name).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(v).Error
			return err == nil, err
		}
		return false, err
	}
	*v = existing
	return false, nil
}

// Session is one recorded simulation run.
type Session struct {
	gorm.Model
	Name      string     `json:"name" gorm:"size:200"`
	StartTime time.Time  `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	TickRate  float32    `json:"tickRate" gorm:"default:60"`
	Origin    geom.Point `json:"origin"`
	Elevation float32    `json:"elevation"`
	Tag       string     `json:"tag" gorm:"size:127"`
	// Duration is the simulated time in seconds, set when the session ends.
	Duration  float64        `json:"duration"`
	VehicleID uint           `json:"vehicleId"`
	Vehicle   Vehicle        `gorm:"foreignkey:VehicleID"`
	Config    datatypes.JSON `json:"config" gorm:"type:jsonb;default:'{}'"`
	Samples   []Sample
	Events    []Event
}

func (*Session) TableName() string {
	return "sessions"
}

// Sample is the vehicle state after one tick.
type Sample struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_sample_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint64    `json:"tick" gorm:"index:idx_sample_tick"`
	SimTime   float64   `json:"simTime"`

	Position  geom.Point `json:"position"` // EPSG:3857
	Elevation float32    `json:"elevation"`
	Heading   float32    `json:"heading"` // degrees
	Speed     float32    `json:"speed"`   // m/s along the hull's forward axis
	YawRate   float32    `json:"yawRate"`

	Throttle  float32 `json:"throttle"`
	Steering  float32 `json:"steering"`
	Handbrake bool    `json:"handbrake"`

	Gear         uint8   `json:"gear"`
	Reverse      bool    `json:"reverse"`
	EngineRPM    float32 `json:"engineRpm"`
	EngineTorque float32 `json:"engineTorque"`

	Left  TrackState `json:"left" gorm:"embedded;embeddedPrefix:left_"`
	Right TrackState `json:"right" gorm:"embedded;embeddedPrefix:right_"`

	Sleeping bool           `json:"sleeping"`
	Wheels   datatypes.JSON `json:"wheels" gorm:"type:jsonb;default:'[]'"`
}

func (*Sample) TableName() string {
	return "samples"
}

// TrackState is one side's drivetrain state, embedded in Sample.
type TrackState struct {
	AngularVelocity float32 `json:"angularVelocity"`
	DriveTorque     float32 `json:"driveTorque"`
	BrakeRatio      float32 `json:"brakeRatio"`
	Load            float32 `json:"load"`
	Contacts        uint8   `json:"contacts"`
}

// WheelState is one element of Sample.Wheels.
type WheelState struct {
	Index        int     `json:"index"`
	Grounded     bool    `json:"grounded"`
	Compression  float32 `json:"compression"`
	Load         float32 `json:"load"`
	VisualLength float32 `json:"visualLength"`
	Surface      string  `json:"surface,omitempty"`
}

// Event is a discrete occurrence: gear shifts, sleep changes, rejected
// control states and scenario steps.
type Event struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"type:timestamptz;"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_event_session_id"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint64         `json:"tick" gorm:"index:idx_event_tick;"`
	SimTime   float64        `json:"simTime"`
	Kind      string         `json:"kind" gorm:"size:64;index:idx_event_kind"`
	Message   string         `json:"message"`
	ExtraData datatypes.JSON `json:"extraData" gorm:"type:jsonb;default:'{}'"`
}

func (*Event) TableName() string {
	return "events"
}

// SessionTrack is the driven path of a finished session.
type SessionTrack struct {
	ID        uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint            `json:"sessionId" gorm:"uniqueIndex"`
	Session   Session         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Path      geom.LineString `json:"path" gorm:"type:geometry(LineStringZ,3857)"`
	Distance  float64         `json:"distance"`
	Points    uint32          `json:"points"`
}

func (*SessionTrack) TableName() string {
	return "session_tracks"
}
