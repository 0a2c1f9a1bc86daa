// Package runner drives one vehicle at a fixed step. It owns the vehicle and
// its rigid body; everything else reaches them through queued commands that
// are drained at the start of each tick.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/tracksim/tracksim/internal/cache"
	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/queue"
	"github.com/tracksim/tracksim/internal/rigidbody"
	"github.com/tracksim/tracksim/internal/worker"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// Commands handled by the runner.
const (
	CmdControl = "vehicle.control" // payload vehicle.ControlState
	CmdInput   = "vehicle.input"   // payload Input
	CmdShift   = "vehicle.shift"   // payload bool, true shifts up
	CmdSleep   = "vehicle.sleep"   // payload bool, mirrored sleep state
	CmdPush    = "vehicle.push"    // payload mgl64.Vec3 velocity change
	CmdStatus  = "vehicle.status"
)

// CommandTimeout bounds how long a caller waits for the next tick.
const CommandTimeout = 2 * time.Second

var (
	// ErrStopped is returned for commands sent to a runner that is not running.
	ErrStopped = errors.New("runner stopped")
	// ErrBadPayload is returned when a command carries the wrong payload type.
	ErrBadPayload = errors.New("unexpected command payload")
)

// Input sets driver inputs. Nil fields are left unchanged.
type Input struct {
	Throttle  *float64
	Steering  *float64
	Handbrake *bool
}

// Config controls the loop.
type Config struct {
	TickRate float64
	// Duration of simulated time. Zero runs until the context ends.
	Duration time.Duration
	// Realtime paces ticks to the wall clock.
	Realtime bool
	// Mass of the reference rigid body in kg.
	Mass  float64
	Steps []config.ScenarioStep
	// Session is recorded when a recorder is set. ID and StartTime are filled in.
	Session core.Session
}

// Dependencies are optional collaborators.
type Dependencies struct {
	Logger *slog.Logger
	// Recorder receives session, sample and event records.
	Recorder worker.Sender
	Poses    *cache.PoseCache
}

type request struct {
	cmd   dispatcher.Command
	reply chan result
}

type result struct {
	value any
	err   error
}

// Runner owns a vehicle and steps it.
type Runner struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger

	v        *vehicle.Vehicle
	body     *rigidbody.Body
	timeline *Timeline
	commands *queue.Queue[request]

	session  *core.Session
	shared   atomic.Pointer[core.Session]
	lastGear int
	events   []core.Event

	started  atomic.Bool
	running  atomic.Bool
	done     chan struct{}
	status   atomic.Pointer[Status]
	tickTime atomic.Int64

	mu        sync.Mutex
	listeners []func(vehicle.SleepEvent)
}

// New builds the vehicle on the reference rigid body, resting on flat ground.
func New(cfg Config, vcfg vehicle.Config, deps Dependencies) (*Runner, error) {
	if !(cfg.TickRate > 0) {
		return nil, fmt.Errorf("tick rate must be positive, got %v", cfg.TickRate)
	}
	if !(cfg.Mass > 0) {
		return nil, fmt.Errorf("mass must be positive, got %v", cfg.Mass)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := &Runner{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger,
		timeline: NewTimeline(cfg.Steps),
		commands: queue.New[request](),
		done:     make(chan struct{}),
	}

	d := vcfg.Suspension.Defaults
	pose := vehicle.IdentityPose()
	pose.Position = mgl64.Vec3{0, 0, d.Travel() + d.CollisionRadius - 0.02}
	r.body = rigidbody.New(cfg.Mass, pose)

	v, err := vehicle.New(vcfg, r.body, rigidbody.Flat(0),
		vehicle.WithLogger(deps.Logger),
		vehicle.WithSleepListener(vehicle.SleepListenerFunc(r.onSleep)),
	)
	if err != nil {
		return nil, err
	}
	r.v = v
	r.lastGear = v.CurrentGear()
	r.publish(time.Time{})
	return r, nil
}

// Vehicle exposes the vehicle for setup before Run. It must not be used
// concurrently with Run.
func (r *Runner) Vehicle() *vehicle.Vehicle { return r.v }

// Body exposes the rigid body for setup before Run.
func (r *Runner) Body() *rigidbody.Body { return r.body }

// OnSleepChange registers f to be called on the runner goroutine for every
// sleep state change.
func (r *Runner) OnSleepChange(f func(vehicle.SleepEvent)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, f)
	r.mu.Unlock()
}

// RegisterHandlers routes the runner's commands through d.
func (r *Runner) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdControl, r.Submit, dispatcher.Logged())
	d.Register(CmdInput, r.Submit, dispatcher.Logged())
	d.Register(CmdShift, r.Submit, dispatcher.Logged())
	d.Register(CmdSleep, r.Submit, dispatcher.Logged())
	d.Register(CmdPush, r.Submit, dispatcher.Logged())
	d.Register(CmdStatus, func(dispatcher.Command) (any, error) {
		return r.Status(), nil
	})
}

// Submit queues c for the next tick and waits for its result.
func (r *Runner) Submit(c dispatcher.Command) (any, error) {
	if !r.running.Load() {
		return nil, ErrStopped
	}
	req := request{cmd: c, reply: make(chan result, 1)}
	r.commands.Push(req)

	timer := time.NewTimer(CommandTimeout)
	defer timer.Stop()
	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-r.done:
		return nil, ErrStopped
	case <-timer.C:
		return nil, fmt.Errorf("command %s: timed out waiting for tick", c.Name)
	}
}

// PendingCommands is the command queue length.
func (r *Runner) PendingCommands() int { return r.commands.Len() }

// LastTickDuration is the wall time of the last vehicle tick and body step.
func (r *Runner) LastTickDuration() time.Duration { return time.Duration(r.tickTime.Load()) }

// Session returns the recorded session, or nil before Run.
func (r *Runner) Session() *core.Session {
	if s := r.shared.Load(); s != nil {
		cp := *s
		return &cp
	}
	return nil
}

// Run steps the vehicle until the configured duration elapses or ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("runner already started")
	}
	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		close(r.done)
		r.rejectPending()
	}()

	dt := 1 / r.cfg.TickRate
	var maxTicks uint64
	if r.cfg.Duration > 0 {
		maxTicks = uint64(r.cfg.Duration.Seconds()*r.cfg.TickRate + 0.5)
	}

	start := time.Now()
	if err := r.startSession(start); err != nil {
		return err
	}

	var pace <-chan time.Time
	if r.cfg.Realtime {
		ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
		pace = ticker.C
	}

	r.log.Info("Runner started", "tickRate", r.cfg.TickRate, "duration", r.cfg.Duration, "realtime", r.cfg.Realtime)

	var runErr error
loop:
	for maxTicks == 0 || r.v.Ticks() < maxTicks {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		r.drainCommands()
		r.applyTimeline()

		t0 := time.Now()
		r.v.Tick(dt)
		r.body.Step(dt)
		r.tickTime.Store(int64(time.Since(t0)))

		if err := r.afterTick(); err != nil {
			runErr = err
			break
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				break loop
			case <-pace:
			}
		}
	}

	r.log.Info("Runner stopped", "ticks", r.v.Ticks(), "simTime", r.v.Clock(), "wall", time.Since(start))
	if err := r.endSession(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (r *Runner) startSession(start time.Time) error {
	if r.deps.Recorder == nil {
		return nil
	}
	s := r.cfg.Session
	if s.StartTime.IsZero() {
		s.StartTime = start
	}
	s.TickRate = r.cfg.TickRate
	if len(s.Config) == 0 {
		if data, err := json.Marshal(r.v.Config()); err == nil {
			s.Config = data
		}
	}
	if err := worker.StartSession(r.deps.Recorder, &s); err != nil {
		return err
	}
	r.session = &s
	r.shared.Store(&s)
	r.publish(s.StartTime)
	return nil
}

func (r *Runner) endSession() error {
	if r.session == nil {
		return nil
	}
	return worker.EndSession(r.deps.Recorder)
}

// drainCommands applies every queued command before the tick.
func (r *Runner) drainCommands() {
	for {
		req, ok := r.commands.Pop()
		if !ok {
			return
		}
		value, err := r.apply(req.cmd)
		req.reply <- result{value: value, err: err}
	}
}

func (r *Runner) rejectPending() {
	for _, req := range r.commands.GetAndEmpty() {
		req.reply <- result{err: ErrStopped}
	}
}

func (r *Runner) apply(c dispatcher.Command) (any, error) {
	switch c.Name {
	case CmdControl:
		cs, ok := c.Payload.(vehicle.ControlState)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrBadPayload, c.Payload)
		}
		if err := r.v.UpdateControlState(cs); err != nil {
			r.event(core.EventControlRejected, err.Error(), map[string]any{"source": c.Source})
			return nil, err
		}
		return nil, nil
	case CmdInput:
		in, ok := c.Payload.(Input)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrBadPayload, c.Payload)
		}
		r.setInput(in)
		return nil, nil
	case CmdShift:
		up, ok := c.Payload.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrBadPayload, c.Payload)
		}
		return r.v.ShiftGear(up), nil
	case CmdSleep:
		asleep, ok := c.Payload.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrBadPayload, c.Payload)
		}
		r.v.ApplySleepState(asleep)
		return nil, nil
	case CmdPush:
		dv, ok := c.Payload.(mgl64.Vec3)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrBadPayload, c.Payload)
		}
		r.body.Push(dv)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", c.Name)
	}
}

func (r *Runner) setInput(in Input) {
	if in.Throttle != nil {
		r.v.SetThrottleInput(*in.Throttle)
	}
	if in.Steering != nil {
		r.v.SetSteeringInput(*in.Steering)
	}
	if in.Handbrake != nil {
		r.v.SetHandbrakeInput(*in.Handbrake)
	}
}

func (r *Runner) applyTimeline() {
	for _, step := range r.timeline.Due(r.v.Clock()) {
		r.setInput(Input{Throttle: step.Throttle, Steering: step.Steering, Handbrake: step.Handbrake})
		switch step.Shift {
		case "up":
			r.v.ShiftGear(true)
		case "down":
			r.v.ShiftGear(false)
		}
		if step.Note != "" {
			r.event(core.EventScenario, step.Note, map[string]any{"at": step.At})
		}
	}
}

func (r *Runner) onSleep(ev vehicle.SleepEvent) {
	kind := core.EventWake
	if ev.IsSleeping {
		kind = core.EventSleep
	}
	r.event(kind, kind, map[string]any{"simTime": ev.Time})

	r.mu.Lock()
	listeners := r.listeners
	r.mu.Unlock()
	for _, f := range listeners {
		f(ev)
	}
}

func (r *Runner) event(kind, msg string, extra map[string]any) {
	r.events = append(r.events, core.Event{
		Tick:      r.v.Ticks(),
		SimTime:   r.v.Clock(),
		Kind:      kind,
		Message:   msg,
		ExtraData: extra,
	})
}

// afterTick detects gear changes, publishes status and records.
func (r *Runner) afterTick() error {
	if g := r.v.CurrentGear(); g != r.lastGear {
		r.event(core.EventGearShift, fmt.Sprintf("%d -> %d", r.lastGear, g), map[string]any{
			"from":    r.lastGear,
			"to":      g,
			"reverse": r.v.IsReverse(),
		})
		r.lastGear = g
	}

	var startTime time.Time
	if r.session != nil {
		startTime = r.session.StartTime
	}
	st := r.publish(startTime)

	if r.deps.Poses != nil {
		r.deps.Poses.Set(st.Tick, r.v.WheelPoses())
	}

	events := r.events
	r.events = r.events[:0]
	if r.session == nil {
		return nil
	}

	sample := capture(r.v, r.body, st.Time)
	if err := r.record(&sample); err != nil {
		return err
	}
	for i := range events {
		events[i].Time = timeAt(startTime, events[i].SimTime)
		ev := events[i]
		if err := r.record(&ev); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) record(payload any) error {
	_, err := r.deps.Recorder.Dispatch(dispatcher.Command{Name: worker.CmdRecord, Payload: payload, Source: "runner"})
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}
