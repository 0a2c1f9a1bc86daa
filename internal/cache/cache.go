package cache

import (
	"sync"

	"github.com/tracksim/tracksim/pkg/vehicle"
)

// PoseCache holds the latest wheel pose snapshot so readers outside the
// runner goroutine never touch the vehicle.
type PoseCache struct {
	m     sync.RWMutex
	tick  uint64
	poses []vehicle.WheelPose
}

func NewPoseCache() *PoseCache {
	return &PoseCache{}
}

// Set replaces the snapshot. poses is copied.
func (c *PoseCache) Set(tick uint64, poses []vehicle.WheelPose) {
	c.m.Lock()
	defer c.m.Unlock()
	c.tick = tick
	c.poses = append(c.poses[:0], poses...)
}

// Get returns the tick and a copy of the last snapshot.
func (c *PoseCache) Get() (uint64, []vehicle.WheelPose) {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]vehicle.WheelPose, len(c.poses))
	copy(out, c.poses)
	return c.tick, out
}

func (c *PoseCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.tick = 0
	c.poses = nil
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
