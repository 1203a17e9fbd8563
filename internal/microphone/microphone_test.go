package microphone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorforge/multicorder/internal/device"
)

func TestNew_DecodesParams(t *testing.T) {
	m, err := New(0, map[string]any{
		"name":       "front mic",
		"samplerate": 44100,
		"channels":   2,
	})
	require.NoError(t, err)

	assert.Equal(t, "microphone0", m.ID())
	assert.Equal(t, "front mic", m.Name())
	assert.Equal(t, 44100, m.params.SampleRate)
	assert.Equal(t, 2, m.params.Channels)

	// Defaults
	assert.Equal(t, 2, m.params.SampleWidth)
	assert.Equal(t, "default", m.params.Source)
}

func TestNew_WeaklyTypedParams(t *testing.T) {
	// YAML may deliver numbers as strings depending on quoting.
	m, err := New(1, map[string]any{
		"samplerate": "48000",
		"channels":   "1",
	})
	require.NoError(t, err)
	assert.Equal(t, 48000, m.params.SampleRate)
	assert.Equal(t, 1, m.params.Channels)
}

func TestConfigure_RejectsUnsupportedSampleRate(t *testing.T) {
	for _, rate := range []int{0, 4000, 500000} {
		m, err := New(0, map[string]any{"samplerate": rate, "channels": 1})
		require.NoError(t, err)

		err = m.Configure()
		var confErr *device.ConfigurationError
		require.ErrorAs(t, err, &confErr, "sample rate %d must be rejected", rate)
		assert.Contains(t, confErr.Reason, "sample rate")
	}
}

func TestConfigure_RejectsUnsupportedChannelCount(t *testing.T) {
	m, err := New(0, map[string]any{"samplerate": 44100, "channels": 0})
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, m.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "channel count")
}

func TestConfigure_RejectsUnsupportedSampleWidth(t *testing.T) {
	m, err := New(0, map[string]any{"samplerate": 44100, "channels": 1, "samplewidth": 7})
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, m.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "sample width")
}

func TestStop_SafeWithoutStart(t *testing.T) {
	m, err := New(0, map[string]any{"samplerate": 44100, "channels": 1})
	require.NoError(t, err)

	require.NoError(t, m.Stop())
	state, _ := m.Status()
	assert.Equal(t, device.StateStopped, state)
}

func TestDescribe_KeepsRawParams(t *testing.T) {
	raw := map[string]any{
		"samplerate":   44100,
		"channels":     1,
		"vendor_quirk": "usb-reset",
	}
	m, err := New(3, raw)
	require.NoError(t, err)

	d := m.Describe()
	assert.Equal(t, "microphone3", d.ID)
	assert.Equal(t, 44100, d.Params["samplerate"])
	assert.Equal(t, "usb-reset", d.Params["vendor_quirk"])
}
