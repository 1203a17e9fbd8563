package device

import (
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a device
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Device is the uniform contract every sensor stream implements. A device is
// created by the Registry from configuration, owned exclusively by one
// Recorder, and driven only through these operations.
type Device interface {
	ID() string
	Kind() string
	Index() int
	Name() string

	// Configure validates the kind-specific parameters against the host.
	// It must fail before Start is ever attempted, never lazily during
	// recording.
	Configure() error

	// Start begins capture into the given output directory. The start
	// timestamp is recorded at the moment capture is confirmed active,
	// not at call time.
	Start(dir string) error

	// Stop halts capture and flushes buffered data. It must be safe to
	// call on a device that never fully reached the running state.
	Stop() error

	// Reset returns a stopped device to idle so it can be started again.
	Reset() error

	Status() (State, error)
	Describe() Description
}

// Description is the manifest-serializable view of a device. It must be
// computable even after Stop.
type Description struct {
	ID         string         `yaml:"id" json:"id"`
	Kind       string         `yaml:"kind" json:"kind"`
	Index      int            `yaml:"index" json:"index"`
	Name       string         `yaml:"name" json:"name"`
	Params     map[string]any `yaml:"params" json:"params"`
	OutputFile string         `yaml:"output_file,omitempty" json:"output_file,omitempty"`
	StartedAt  *time.Time     `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	StoppedAt  *time.Time     `yaml:"stopped_at,omitempty" json:"stopped_at,omitempty"`
	State      string         `yaml:"state" json:"state"`
	Error      string         `yaml:"error,omitempty" json:"error,omitempty"`
}

// Base carries the identity, raw parameters and lifecycle state shared by
// every device kind. Concrete devices embed it and drive transitions through
// Starting/ConfirmStarted/ConfirmStopped/Fail.
type Base struct {
	kind   string
	index  int
	name   string
	params map[string]any

	mu         sync.Mutex
	state      State
	lastErr    error
	startedAt  time.Time
	stoppedAt  time.Time
	outputFile string
}

// NewBase creates the shared device core. The name is taken from the "name"
// parameter when present; the raw parameter map is kept verbatim for the
// manifest.
func NewBase(kind string, index int, params map[string]any) Base {
	name := "unknown"
	if n, ok := params["name"].(string); ok && n != "" {
		name = n
	}
	return Base{
		kind:   kind,
		index:  index,
		name:   name,
		params: params,
		state:  StateIdle,
	}
}

func (b *Base) ID() string {
	return fmt.Sprintf("%s%d", b.kind, b.index)
}

func (b *Base) Kind() string { return b.kind }
func (b *Base) Index() int   { return b.index }
func (b *Base) Name() string { return b.name }

// Params returns a copy of the raw kind-specific parameters.
func (b *Base) Params() map[string]any {
	out := make(map[string]any, len(b.params))
	for k, v := range b.params {
		out[k] = v
	}
	return out
}

// Starting verifies the device may leave idle. The running transition itself
// happens via ConfirmStarted once capture is confirmed active.
func (b *Base) Starting() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateIdle:
		return nil
	case StateRunning:
		return fmt.Errorf("device %s already running", b.ID())
	default:
		return fmt.Errorf("device %s is stopped, reset before starting", b.ID())
	}
}

// ConfirmStarted records the wall-clock start timestamp and enters running.
func (b *Base) ConfirmStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateRunning
	b.startedAt = time.Now()
	b.lastErr = nil
}

// ConfirmStopped records the wall-clock end timestamp and enters stopped.
// Calling it on a device that never reached running is allowed: a partial
// start must still release resources and settle in stopped.
func (b *Base) ConfirmStopped(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateStopped {
		return
	}
	b.state = StateStopped
	b.stoppedAt = time.Now()
	if err != nil {
		b.lastErr = err
	}
}

// Fail records a start failure. The device stays idle so Stop can still run
// its release path.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = err
}

// Reset returns a stopped (or idle) device to a clean idle state.
func (b *Base) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateRunning {
		return fmt.Errorf("device %s is running, stop it before reset", b.ID())
	}
	b.state = StateIdle
	b.lastErr = nil
	b.startedAt = time.Time{}
	b.stoppedAt = time.Time{}
	b.outputFile = ""
	return nil
}

// SetOutputFile records where this device writes its capture.
func (b *Base) SetOutputFile(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputFile = path
}

// Status returns the current lifecycle state and the last error, if any.
func (b *Base) Status() (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.lastErr
}

// Describe returns the manifest view of the device.
func (b *Base) Describe() Description {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := Description{
		ID:         b.ID(),
		Kind:       b.kind,
		Index:      b.index,
		Name:       b.name,
		Params:     make(map[string]any, len(b.params)),
		OutputFile: b.outputFile,
		State:      string(b.state),
	}
	for k, v := range b.params {
		d.Params[k] = v
	}
	if !b.startedAt.IsZero() {
		t := b.startedAt
		d.StartedAt = &t
	}
	if !b.stoppedAt.IsZero() {
		t := b.stoppedAt
		d.StoppedAt = &t
	}
	if b.lastErr != nil {
		d.Error = b.lastErr.Error()
	}
	return d
}
