// Package listener maps external trigger signals onto recorder lifecycle
// calls. A listener never constructs or destroys its recorder; it only
// invokes operations on it and translates their results into a
// transport-appropriate acknowledgement.
package listener

import (
	"context"
	"errors"

	"github.com/sensorforge/multicorder/internal/device"
	"github.com/sensorforge/multicorder/internal/recorder"
)

// ErrAlreadyBound reports a second Bind on the same listener.
var ErrAlreadyBound = errors.New("listener already bound to a recorder")

// ErrNotBound reports Serve or a trigger event before any recorder is bound.
var ErrNotBound = errors.New("listener not bound to a recorder")

// Listener is an external-trigger channel bound to exactly one recorder.
// Serve blocks until the context is cancelled; each inbound trigger event is
// handled independently so a status query succeeds even while a recording is
// in progress.
type Listener interface {
	Bind(rec *recorder.Recorder) error
	Serve(ctx context.Context) error
}

// Machine-readable result codes returned to the trigger side so it can tell
// a sequence violation from a device-level failure.
const (
	codeInvalidSequence  = "invalid_sequence"
	codeAlreadyRecording = "already_recording"
	codeSetupFailed      = "setup_failed"
	codePartialStart     = "partial_start"
	codeDeviceFailure    = "device_failure"
)

// triggerResponse acknowledges one trigger event.
type triggerResponse struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message,omitempty"`
	Code          string             `json:"code,omitempty"`
	Error         string             `json:"error,omitempty"`
	FailedDevices []string           `json:"failed_devices,omitempty"`
	Session       *recorder.Session  `json:"session,omitempty"`
	Manifest      *recorder.Manifest `json:"manifest,omitempty"`
}

// statusResponse answers a status query.
type statusResponse struct {
	State   string               `json:"state"`
	Session *recorder.Session    `json:"session,omitempty"`
	Devices []device.Description `json:"devices"`
}

func statusOf(rec *recorder.Recorder) statusResponse {
	return statusResponse{
		State:   string(rec.State()),
		Session: rec.Session(),
		Devices: rec.DeviceDescriptions(),
	}
}

// doSetup invokes Recorder.Setup and translates the result.
func doSetup(rec *recorder.Recorder, name string) triggerResponse {
	sess, err := rec.Setup(name)
	if err == nil {
		return triggerResponse{Success: true, Message: "session prepared", Session: sess}
	}

	var setupErr *recorder.SetupError
	if errors.As(err, &setupErr) {
		return triggerResponse{
			Success:       false,
			Code:          codeSetupFailed,
			Error:         err.Error(),
			FailedDevices: setupErr.Failed,
		}
	}
	return triggerResponse{Success: false, Code: codeFor(err), Error: err.Error()}
}

// doStart invokes Recorder.Start. A partial start is acknowledged as a
// success with a warning: the surviving devices keep recording.
func doStart(rec *recorder.Recorder) triggerResponse {
	err := rec.Start()
	if err == nil {
		return triggerResponse{Success: true, Message: "recording started"}
	}

	var partial *recorder.PartialStartError
	if errors.As(err, &partial) {
		return triggerResponse{
			Success:       true,
			Code:          codePartialStart,
			Message:       "recording started with failed devices",
			Error:         err.Error(),
			FailedDevices: partial.Failed,
		}
	}
	return triggerResponse{Success: false, Code: codeFor(err), Error: err.Error()}
}

// doStop invokes Recorder.Stop and returns the manifest.
func doStop(rec *recorder.Recorder) triggerResponse {
	manifest, err := rec.Stop()
	if err != nil {
		return triggerResponse{Success: false, Code: codeFor(err), Error: err.Error(), Manifest: manifest}
	}
	return triggerResponse{Success: true, Message: "recording stopped", Manifest: manifest}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, recorder.ErrInvalidSequence):
		return codeInvalidSequence
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return codeAlreadyRecording
	default:
		return codeDeviceFailure
	}
}
