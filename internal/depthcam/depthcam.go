// Package depthcam implements the depth/motion-camera device kind for
// RealSense-style cameras. Capture is a thin adapter over the vendor's
// rs-record tool writing a rosbag; the orchestration core only sees the
// uniform device contract.
package depthcam

import (
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/sensorforge/multicorder/internal/device"
)

// Kind is the configuration key for depth/motion-camera devices.
const Kind = "depth_camera"

const captureBinary = "rs-record"

var streamTypes = map[string]bool{
	"depth":    true,
	"color":    true,
	"infrared": true,
	"gyro":     true,
	"accel":    true,
	"pose":     true,
}

// StreamParams describes one sensor stream of the camera.
type StreamParams struct {
	Type      string `mapstructure:"type"`
	Format    string `mapstructure:"format"`
	Framerate int    `mapstructure:"framerate"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
}

// Params are the kind-specific parameters of one camera.
type Params struct {
	Name         string                  `mapstructure:"name"`
	SerialNumber string                  `mapstructure:"serial_number"`
	Streams      map[string]StreamParams `mapstructure:"streams"`
}

// Camera records one depth/motion camera to a rosbag file.
type Camera struct {
	device.Base
	params Params

	mu  sync.Mutex
	cmd *exec.Cmd
}

// Factory wires the depth-camera kind into a device registry.
func Factory() device.Factory {
	return device.Factory{
		Kind: Kind,
		New: func(index int, params map[string]any) (device.Device, error) {
			return New(index, params)
		},
	}
}

// New creates a camera from its raw configuration.
func New(index int, raw map[string]any) (*Camera, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding depth camera %d parameters: %w", index, err)
	}

	return &Camera{
		Base:   device.NewBase(Kind, index, raw),
		params: p,
	}, nil
}

// Configure validates serial number and stream set before any start attempt.
func (c *Camera) Configure() error {
	if c.params.SerialNumber == "" {
		return &device.ConfigurationError{Device: c.ID(), Reason: "serial_number is required"}
	}
	if len(c.params.Streams) == 0 {
		return &device.ConfigurationError{Device: c.ID(), Reason: "at least one stream is required"}
	}

	for name, s := range c.params.Streams {
		if !streamTypes[s.Type] {
			return &device.ConfigurationError{
				Device: c.ID(),
				Reason: fmt.Sprintf("stream %q has unsupported type %q", name, s.Type),
			}
		}
		if s.Framerate <= 0 {
			return &device.ConfigurationError{
				Device: c.ID(),
				Reason: fmt.Sprintf("stream %q must have a positive framerate", name),
			}
		}
		if (s.Width == 0) != (s.Height == 0) {
			return &device.ConfigurationError{
				Device: c.ID(),
				Reason: fmt.Sprintf("stream %q must set width and height together", name),
			}
		}
	}

	if _, err := exec.LookPath(captureBinary); err != nil {
		return &device.UnavailableError{Device: c.ID(), Err: err}
	}
	return nil
}

// Start spawns the vendor recorder writing a rosbag into the session
// directory.
func (c *Camera) Start(dir string) error {
	if err := c.Starting(); err != nil {
		return &device.StartError{Device: c.ID(), Err: err}
	}

	out := filepath.Join(dir, c.ID()+".bag")
	args := []string{
		"-s", c.params.SerialNumber,
		"-f", out,
	}

	cmd := exec.Command(captureBinary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.Fail(err)
		return &device.StartError{Device: c.ID(), Err: err}
	}

	if err := cmd.Start(); err != nil {
		c.Fail(err)
		return &device.UnavailableError{Device: c.ID(), Err: err}
	}
	go device.DrainOutput(stderr, c.ID(), "stderr")

	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()

	c.SetOutputFile(out)
	c.ConfirmStarted()
	slog.Info("Depth camera capture started", "device", c.ID(), "serial", c.params.SerialNumber, "output", out)
	return nil
}

// Stop interrupts the vendor recorder so it finalizes the rosbag. Safe to
// call on a camera that never reached running.
func (c *Camera) Stop() error {
	c.mu.Lock()
	cmd := c.cmd
	c.cmd = nil
	c.mu.Unlock()

	if cmd == nil {
		c.ConfirmStopped(nil)
		return nil
	}

	err := device.StopProcess(cmd)
	if err != nil {
		slog.Warn("Depth camera capture exited uncleanly", "device", c.ID(), "error", err)
	}
	c.ConfirmStopped(err)
	slog.Info("Depth camera capture stopped", "device", c.ID())
	return nil
}
