// Package microphone implements the audio-input device kind. Capture is a
// thin adapter over an ffmpeg process reading from the host's audio server;
// the orchestration core only sees the uniform device contract.
package microphone

import (
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/sensorforge/multicorder/internal/device"
)

// Kind is the configuration key for audio-input devices.
const Kind = "microphone"

const captureBinary = "ffmpeg"

// sampleCodecs maps sample width in bytes to the PCM codec written into the
// output WAV file.
var sampleCodecs = map[int]string{
	1: "pcm_u8",
	2: "pcm_s16le",
	3: "pcm_s24le",
	4: "pcm_s32le",
}

// Params are the kind-specific parameters of one microphone.
type Params struct {
	Name        string `mapstructure:"name"`
	SampleRate  int    `mapstructure:"samplerate"`
	Channels    int    `mapstructure:"channels"`
	SampleWidth int    `mapstructure:"samplewidth"`
	Source      string `mapstructure:"source"`
}

// Microphone records one audio stream to a WAV file.
type Microphone struct {
	device.Base
	params Params

	mu  sync.Mutex
	cmd *exec.Cmd
}

// Factory wires the microphone kind into a device registry.
func Factory() device.Factory {
	return device.Factory{
		Kind: Kind,
		New: func(index int, params map[string]any) (device.Device, error) {
			return New(index, params)
		},
	}
}

// New creates a microphone from its raw configuration. Unknown fields are
// kept in the raw parameter map for the manifest; typed fields are decoded
// weakly so YAML numbers and strings both work.
func New(index int, raw map[string]any) (*Microphone, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding microphone %d parameters: %w", index, err)
	}

	if p.SampleWidth == 0 {
		p.SampleWidth = 2
	}
	if p.Source == "" {
		p.Source = "default"
	}

	return &Microphone{
		Base:   device.NewBase(Kind, index, raw),
		params: p,
	}, nil
}

// Configure validates the parameters against what the host can satisfy.
// This runs before any start attempt, never lazily during recording.
func (m *Microphone) Configure() error {
	if m.params.SampleRate < 8000 || m.params.SampleRate > 384000 {
		return &device.ConfigurationError{
			Device: m.ID(),
			Reason: fmt.Sprintf("unsupported sample rate %d", m.params.SampleRate),
		}
	}
	if m.params.Channels < 1 || m.params.Channels > 64 {
		return &device.ConfigurationError{
			Device: m.ID(),
			Reason: fmt.Sprintf("unsupported channel count %d", m.params.Channels),
		}
	}
	if _, ok := sampleCodecs[m.params.SampleWidth]; !ok {
		return &device.ConfigurationError{
			Device: m.ID(),
			Reason: fmt.Sprintf("unsupported sample width %d bytes", m.params.SampleWidth),
		}
	}

	if _, err := exec.LookPath(captureBinary); err != nil {
		return &device.UnavailableError{Device: m.ID(), Err: err}
	}
	return nil
}

// Start spawns the capture process writing into the session directory. The
// start timestamp is recorded once the process is confirmed running.
func (m *Microphone) Start(dir string) error {
	if err := m.Starting(); err != nil {
		return &device.StartError{Device: m.ID(), Err: err}
	}

	out := filepath.Join(dir, m.ID()+".wav")
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "warning",
		"-f", "pulse",
		"-i", m.params.Source,
		"-ar", strconv.Itoa(m.params.SampleRate),
		"-ac", strconv.Itoa(m.params.Channels),
		"-c:a", sampleCodecs[m.params.SampleWidth],
		"-y", out,
	}

	cmd := exec.Command(captureBinary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.Fail(err)
		return &device.StartError{Device: m.ID(), Err: err}
	}

	if err := cmd.Start(); err != nil {
		m.Fail(err)
		return &device.UnavailableError{Device: m.ID(), Err: err}
	}
	go device.DrainOutput(stderr, m.ID(), "stderr")

	m.mu.Lock()
	m.cmd = cmd
	m.mu.Unlock()

	m.SetOutputFile(out)
	m.ConfirmStarted()
	slog.Info("Microphone capture started", "device", m.ID(), "source", m.params.Source, "output", out)
	return nil
}

// Stop interrupts the capture process so it flushes the WAV file. Safe to
// call on a microphone that never reached running: nothing was claimed, the
// device just settles in stopped.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	cmd := m.cmd
	m.cmd = nil
	m.mu.Unlock()

	if cmd == nil {
		m.ConfirmStopped(nil)
		return nil
	}

	err := device.StopProcess(cmd)
	if err != nil {
		// Flush problems are logged, not fatal: the file may still hold
		// usable data.
		slog.Warn("Microphone capture exited uncleanly", "device", m.ID(), "error", err)
	}
	m.ConfirmStopped(err)
	slog.Info("Microphone capture stopped", "device", m.ID())
	return nil
}
