package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracksim/tracksim/pkg/vehicle"
)

func TestHttpToWS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://collector.example/", "wss://collector.example"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpToWS(tt.in), tt.in)
	}
}

func TestFirstForwardGear(t *testing.T) {
	cfg := vehicle.DefaultConfig()
	g := firstForwardGear(cfg)
	assert.Greater(t, cfg.Gearbox.Gears[g].Ratio, 0.0)
	assert.Equal(t, 0.0, cfg.Gearbox.Gears[g-1].Ratio)

	cfg.Gearbox.Gears = []vehicle.GearInfo{{Ratio: -3}, {Ratio: 0}}
	assert.Equal(t, 0, firstForwardGear(cfg))
}

func TestConfigDir(t *testing.T) {
	assert.Equal(t, ".", configDir(nil))
	assert.Equal(t, "/etc/tracksim", configDir([]string{"/etc/tracksim", "extra"}))
}
