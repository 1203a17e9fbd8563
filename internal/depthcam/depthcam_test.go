package depthcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorforge/multicorder/internal/device"
)

func validParams() map[string]any {
	return map[string]any{
		"name":          "RealSense D435i",
		"serial_number": "923322071545",
		"streams": map[string]any{
			"depth": map[string]any{
				"type":      "depth",
				"format":    "z16",
				"framerate": 30,
				"width":     848,
				"height":    480,
			},
			"gyro": map[string]any{
				"type":      "gyro",
				"format":    "motion_xyz32f",
				"framerate": 200,
			},
		},
	}
}

func TestNew_DecodesParams(t *testing.T) {
	c, err := New(0, validParams())
	require.NoError(t, err)

	assert.Equal(t, "depth_camera0", c.ID())
	assert.Equal(t, "RealSense D435i", c.Name())
	assert.Equal(t, "923322071545", c.params.SerialNumber)
	require.Len(t, c.params.Streams, 2)
	assert.Equal(t, 848, c.params.Streams["depth"].Width)
	assert.Equal(t, 200, c.params.Streams["gyro"].Framerate)
}

func TestConfigure_RequiresSerialNumber(t *testing.T) {
	params := validParams()
	delete(params, "serial_number")
	c, err := New(0, params)
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, c.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "serial_number")
}

func TestConfigure_RequiresStreams(t *testing.T) {
	c, err := New(0, map[string]any{"serial_number": "123"})
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, c.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "stream")
}

func TestConfigure_RejectsUnknownStreamType(t *testing.T) {
	params := validParams()
	params["streams"] = map[string]any{
		"thermal": map[string]any{"type": "thermal", "framerate": 9},
	}
	c, err := New(0, params)
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, c.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "unsupported type")
}

func TestConfigure_RejectsNonPositiveFramerate(t *testing.T) {
	params := validParams()
	params["streams"] = map[string]any{
		"depth": map[string]any{"type": "depth", "framerate": 0},
	}
	c, err := New(0, params)
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, c.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "framerate")
}

func TestConfigure_RejectsLoneDimension(t *testing.T) {
	params := validParams()
	params["streams"] = map[string]any{
		"depth": map[string]any{"type": "depth", "framerate": 30, "width": 848},
	}
	c, err := New(0, params)
	require.NoError(t, err)

	var confErr *device.ConfigurationError
	require.ErrorAs(t, c.Configure(), &confErr)
	assert.Contains(t, confErr.Reason, "width and height together")
}

func TestStop_SafeWithoutStart(t *testing.T) {
	c, err := New(0, validParams())
	require.NoError(t, err)

	require.NoError(t, c.Stop())
	state, _ := c.Status()
	assert.Equal(t, device.StateStopped, state)
}
