package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_Identity(t *testing.T) {
	b := NewBase("microphone", 2, map[string]any{"name": "front mic", "samplerate": 44100})

	assert.Equal(t, "microphone2", b.ID())
	assert.Equal(t, "microphone", b.Kind())
	assert.Equal(t, 2, b.Index())
	assert.Equal(t, "front mic", b.Name())
}

func TestBase_NameDefaultsToUnknown(t *testing.T) {
	b := NewBase("microphone", 0, map[string]any{"samplerate": 48000})
	assert.Equal(t, "unknown", b.Name())
}

func TestBase_LifecycleTransitions(t *testing.T) {
	b := NewBase("microphone", 0, nil)

	state, lastErr := b.Status()
	require.Equal(t, StateIdle, state)
	require.NoError(t, lastErr)

	require.NoError(t, b.Starting())
	b.ConfirmStarted()

	state, _ = b.Status()
	assert.Equal(t, StateRunning, state)

	// Running devices may not be started again or reset.
	assert.Error(t, b.Starting())
	assert.Error(t, b.Reset())

	b.ConfirmStopped(nil)
	state, _ = b.Status()
	assert.Equal(t, StateStopped, state)

	// No restart from stopped without an explicit reset.
	assert.Error(t, b.Starting())

	require.NoError(t, b.Reset())
	state, _ = b.Status()
	assert.Equal(t, StateIdle, state)
	assert.NoError(t, b.Starting())
}

func TestBase_TimestampsMonotonic(t *testing.T) {
	b := NewBase("microphone", 0, nil)

	require.NoError(t, b.Starting())
	b.ConfirmStarted()
	time.Sleep(5 * time.Millisecond)
	b.ConfirmStopped(nil)

	d := b.Describe()
	require.NotNil(t, d.StartedAt)
	require.NotNil(t, d.StoppedAt)
	assert.False(t, d.StoppedAt.Before(*d.StartedAt), "end timestamp must be >= start timestamp")
}

func TestBase_ConfirmStoppedOnPartialStart(t *testing.T) {
	b := NewBase("depth_camera", 1, nil)

	// Device never reached running; stop must still settle it in stopped.
	b.Fail(errors.New("claim failed"))
	b.ConfirmStopped(nil)

	state, lastErr := b.Status()
	assert.Equal(t, StateStopped, state)
	assert.EqualError(t, lastErr, "claim failed")

	d := b.Describe()
	assert.Nil(t, d.StartedAt)
	assert.NotNil(t, d.StoppedAt)
	assert.Equal(t, "claim failed", d.Error)
}

func TestBase_ResetClearsState(t *testing.T) {
	b := NewBase("microphone", 0, nil)
	b.SetOutputFile("/tmp/microphone0.wav")
	b.Fail(errors.New("boom"))
	b.ConfirmStopped(nil)

	require.NoError(t, b.Reset())

	d := b.Describe()
	assert.Nil(t, d.StartedAt)
	assert.Nil(t, d.StoppedAt)
	assert.Empty(t, d.OutputFile)
	assert.Empty(t, d.Error)
}

func TestBase_DescribeCopiesParams(t *testing.T) {
	params := map[string]any{"samplerate": 44100, "channels": 1}
	b := NewBase("microphone", 0, params)

	d := b.Describe()
	d.Params["samplerate"] = 8000

	again := b.Describe()
	assert.Equal(t, 44100, again.Params["samplerate"])
}

func TestDescribe_AfterStopKeepsIdentity(t *testing.T) {
	b := NewBase("depth_camera", 0, map[string]any{"name": "cam", "serial_number": "123"})
	require.NoError(t, b.Starting())
	b.ConfirmStarted()
	b.SetOutputFile("/tmp/depth_camera0.bag")
	b.ConfirmStopped(nil)

	d := b.Describe()
	assert.Equal(t, "depth_camera0", d.ID)
	assert.Equal(t, "cam", d.Name)
	assert.Equal(t, "123", d.Params["serial_number"])
	assert.Equal(t, "/tmp/depth_camera0.bag", d.OutputFile)
	assert.Equal(t, string(StateStopped), d.State)
}
