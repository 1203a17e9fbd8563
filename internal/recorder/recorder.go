package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sensorforge/multicorder/internal/device"
)

// State represents the session-level state of the recorder
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateReady        State = "ready"
	StateRecording    State = "recording"
	StateFinished     State = "finished"
)

// Session describes one prepared recording session.
type Session struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Dir       string    `yaml:"dir" json:"dir"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Recorder owns an ordered set of devices and one output destination. Setup,
// Start, Stop and Discard are the only state-changing operations; they are
// serialized against each other so a listener can never race two lifecycle
// calls. Status reads never block on an in-flight start/stop fan-out.
type Recorder struct {
	opMu sync.Mutex // serializes lifecycle operations

	mu        sync.RWMutex // guards state, session, per-device results
	state     State
	session   *Session
	callStart time.Time
	callStop  time.Time
	startErrs map[string]error
	stopErrs  map[string]error

	devices    []device.Device
	outputRoot string
}

// New creates a recorder owning the given devices. Device identifiers must
// be unique; ordering is preserved as built by the registry.
func New(devices []device.Device, outputRoot string) (*Recorder, error) {
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if seen[d.ID()] {
			return nil, fmt.Errorf("duplicate device identifier %s", d.ID())
		}
		seen[d.ID()] = true
	}
	return &Recorder{
		devices:    devices,
		outputRoot: outputRoot,
		state:      StateUnconfigured,
	}, nil
}

// State returns the current session-level state.
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Session returns a copy of the current session, or nil before setup.
func (r *Recorder) Session() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return nil
	}
	s := *r.session
	return &s
}

// DeviceDescriptions returns the manifest view of every owned device. Safe
// to call at any time, including while a start/stop fan-out is in flight.
func (r *Recorder) DeviceDescriptions() []device.Description {
	out := make([]device.Description, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.Describe())
	}
	return out
}

// Setup prepares the output destination and validates every device. It is
// all-or-nothing: any configure failure leaves the recorder unconfigured and
// removes the session directory again. A repeated Setup after success is a
// no-op returning the existing session.
func (r *Recorder) Setup(name string) (*Session, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	switch r.State() {
	case StateReady:
		return r.Session(), nil
	case StateUnconfigured:
	default:
		return nil, fmt.Errorf("setup from %s state: %w", r.State(), ErrInvalidSequence)
	}

	if err := os.MkdirAll(r.outputRoot, 0755); err != nil {
		return nil, fmt.Errorf("output destination not writable: %w", err)
	}

	if name == "" {
		name = time.Now().Format("session_2006-01-02_15-04-05")
	}
	name = cleanSessionName(name)
	id := uuid.NewString()

	dir := filepath.Join(r.outputRoot, name)
	if err := os.Mkdir(dir, 0755); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("output destination not writable: %w", err)
		}
		// Existing session with the same name, disambiguate.
		dir = filepath.Join(r.outputRoot, name+"_"+id[:8])
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, fmt.Errorf("output destination not writable: %w", err)
		}
	}

	var failed []string
	var errs error
	for _, d := range r.devices {
		if err := d.Configure(); err != nil {
			failed = append(failed, d.ID())
			errs = multierr.Append(errs, err)
		}
	}
	if len(failed) > 0 {
		os.Remove(dir)
		slog.Error("Device configuration failed", "failed_devices", failed)
		return nil, &SetupError{Failed: failed, Errs: errs}
	}

	session := &Session{
		ID:        id,
		Name:      name,
		Dir:       dir,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.session = session
	r.state = StateReady
	r.startErrs = nil
	r.stopErrs = nil
	r.callStart = time.Time{}
	r.callStop = time.Time{}
	r.mu.Unlock()

	slog.Info("Recording session prepared", "session", name, "dir", dir, "devices", len(r.devices))
	s := *session
	return &s, nil
}

// Start issues start to every device concurrently and waits for every
// attempt to complete. Devices that fail to start do not abort the ones that
// did: the aggregate result is a *PartialStartError and the survivors keep
// recording until Stop.
func (r *Recorder) Start() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	switch r.State() {
	case StateRecording:
		return ErrAlreadyRecording
	case StateReady:
	default:
		return fmt.Errorf("start from %s state: %w", r.State(), ErrInvalidSequence)
	}

	sess := r.Session()

	r.mu.Lock()
	r.state = StateRecording
	r.callStart = time.Now()
	r.mu.Unlock()

	// One task per device: claim latencies are heterogeneous and serializing
	// them would skew relative start timestamps.
	errs := make([]error, len(r.devices))
	var wg sync.WaitGroup
	for i, d := range r.devices {
		wg.Add(1)
		go func(i int, d device.Device) {
			defer wg.Done()
			errs[i] = d.Start(sess.Dir)
		}(i, d)
	}
	wg.Wait()

	var failed []string
	var agg error
	startErrs := make(map[string]error)
	for i, d := range r.devices {
		if errs[i] != nil {
			failed = append(failed, d.ID())
			startErrs[d.ID()] = errs[i]
			agg = multierr.Append(agg, errs[i])
		}
	}

	r.mu.Lock()
	r.startErrs = startErrs
	r.mu.Unlock()

	if len(failed) > 0 {
		slog.Warn("Some devices failed to start, continuing with the rest",
			"failed_devices", failed, "running", len(r.devices)-len(failed))
		return &PartialStartError{Failed: failed, Errs: agg}
	}

	slog.Info("Recording started", "session", sess.Name, "devices", len(r.devices))
	return nil
}

// Stop issues stop to every device concurrently, regardless of whether it
// started successfully, waits for all of them, then assembles and persists
// the manifest. Per-device stop failures are recorded in the manifest but do
// not prevent its persistence.
func (r *Recorder) Stop() (*Manifest, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.State() != StateRecording {
		return nil, fmt.Errorf("stop from %s state: %w", r.State(), ErrInvalidSequence)
	}

	sess := r.Session()

	errs := make([]error, len(r.devices))
	var wg sync.WaitGroup
	for i, d := range r.devices {
		wg.Add(1)
		go func(i int, d device.Device) {
			defer wg.Done()
			errs[i] = d.Stop()
		}(i, d)
	}
	wg.Wait()

	stopErrs := make(map[string]error)
	for i, d := range r.devices {
		if errs[i] != nil {
			stopErrs[d.ID()] = errs[i]
			slog.Warn("Device stop failed", "device", d.ID(), "error", errs[i])
		}
	}

	r.mu.Lock()
	r.stopErrs = stopErrs
	r.callStop = time.Now()
	r.state = StateFinished
	r.mu.Unlock()

	manifest := r.buildManifest(sess)
	path := filepath.Join(sess.Dir, manifestFileName)
	if err := manifest.Write(path); err != nil {
		slog.Error("Failed to persist manifest", "path", path, "error", err)
		return manifest, fmt.Errorf("writing manifest: %w", err)
	}

	slog.Info("Recording stopped", "session", sess.Name, "manifest", path)
	return manifest, nil
}

// Discard resets the recorder and its devices back to unconfigured so the
// same process can record another session.
func (r *Recorder) Discard() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.State() == StateRecording {
		return fmt.Errorf("discard while recording: %w", ErrInvalidSequence)
	}

	for _, d := range r.devices {
		if err := d.Reset(); err != nil {
			return fmt.Errorf("resetting %s: %w", d.ID(), err)
		}
	}

	r.mu.Lock()
	r.state = StateUnconfigured
	r.session = nil
	r.startErrs = nil
	r.stopErrs = nil
	r.callStart = time.Time{}
	r.callStop = time.Time{}
	r.mu.Unlock()
	return nil
}

// cleanSessionName sanitizes a session name into a safe directory name.
// Allows letters, numbers, spaces, hyphens and underscores.
func cleanSessionName(name string) string {
	var result strings.Builder
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' ' || c == '-' || c == '_' {
			result.WriteRune(c)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
	if cleaned == "" {
		cleaned = "session"
	}
	return cleaned
}
