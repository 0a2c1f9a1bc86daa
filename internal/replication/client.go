package replication

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/runner"
	"github.com/tracksim/tracksim/internal/wsconn"
	"github.com/tracksim/tracksim/pkg/streaming"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// ClientConfig configures a controller or observer.
type ClientConfig struct {
	URL     string
	Secret  string
	Vehicle string
	Role    string
	// AckTimeout bounds acknowledged sends. Zero uses wsconn.AckTimeout.
	AckTimeout time.Duration
}

// Client is a replication peer. Controllers send control states; observers
// mirror the authority's sleep state into their own runner through d.
type Client struct {
	cfg  ClientConfig
	d    Sender
	log  *slog.Logger
	conn *wsconn.Conn

	// sendMu keeps one acknowledged send in flight.
	sendMu sync.Mutex
	seq    atomic.Uint64

	asleep   atomic.Bool
	mirrored atomic.Uint64
}

// NewClient creates an unconnected client. d may be nil for controllers.
func NewClient(cfg ClientConfig, d Sender, logger *slog.Logger, opts ...wsconn.Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = wsconn.AckTimeout
	}
	c := &Client{cfg: cfg, d: d, log: logger}
	opts = append([]wsconn.Option{wsconn.WithHandler(c.handle)}, opts...)
	c.conn = wsconn.New(logger, opts...)
	return c
}

// Connect dials the authority and announces the role. The hello is replayed
// after every reconnect.
func (c *Client) Connect() error {
	switch c.cfg.Role {
	case streaming.RoleController, streaming.RoleObserver:
	default:
		return fmt.Errorf("unknown role %q", c.cfg.Role)
	}
	if err := c.conn.Dial(c.cfg.URL, c.cfg.Secret); err != nil {
		return err
	}

	hello, err := streaming.Encode(streaming.TypeHello, streaming.HelloPayload{
		Role:    c.cfg.Role,
		Vehicle: c.cfg.Vehicle,
	})
	if err != nil {
		return err
	}
	c.conn.SetReplay(hello)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.SendAndWait(hello, streaming.TypeHello, c.cfg.AckTimeout); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	c.log.Info("Replication connected", "url", c.cfg.URL, "role", c.cfg.Role, "vehicle", c.cfg.Vehicle)
	return nil
}

// SendControl replicates cs to the authority and waits for its verdict.
// Every call carries the next sequence number.
func (c *Client) SendControl(cs vehicle.ControlState) error {
	msg, err := streaming.Encode(streaming.TypeControlState, streaming.ControlStatePayload{
		Vehicle: c.cfg.Vehicle,
		Seq:     c.seq.Add(1),
		State:   cs,
	})
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.SendAndWait(msg, streaming.TypeControlState, c.cfg.AckTimeout)
}

// Asleep is the last sleep state received from the authority.
func (c *Client) Asleep() bool { return c.asleep.Load() }

// Mirrored counts sleep states received.
func (c *Client) Mirrored() uint64 { return c.mirrored.Load() }

// Close disconnects.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) handle(env streaming.Envelope) {
	if env.Type != streaming.TypeSleepState {
		c.log.Debug("Ignoring replication message", "type", env.Type)
		return
	}
	var p streaming.SleepStatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		c.log.Warn("Bad sleep state", "error", err)
		return
	}
	if p.Vehicle != c.cfg.Vehicle {
		return
	}
	c.asleep.Store(p.IsSleeping)
	c.mirrored.Add(1)

	if c.d == nil {
		return
	}
	if _, err := c.d.Dispatch(dispatcher.Command{
		Name:    runner.CmdSleep,
		Payload: p.IsSleeping,
		Source:  "replication",
	}); err != nil {
		c.log.Warn("Failed to mirror sleep state", "sleeping", p.IsSleeping, "error", err)
	}
}
