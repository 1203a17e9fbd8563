package listener

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorforge/multicorder/internal/device"
	"github.com/sensorforge/multicorder/internal/device/devicetest"
	"github.com/sensorforge/multicorder/internal/recorder"
)

func newBoundServer(t *testing.T, devices ...device.Device) (*httptest.Server, *recorder.Recorder) {
	t.Helper()
	rec, err := recorder.New(devices, t.TempDir())
	require.NoError(t, err)

	l := NewHTTP(":0")
	require.NoError(t, l.Bind(rec))

	srv := httptest.NewServer(l.Handler())
	t.Cleanup(srv.Close)
	return srv, rec
}

func post(t *testing.T, srv *httptest.Server, path string, form url.Values) (int, triggerResponse) {
	t.Helper()
	resp, err := http.PostForm(srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body triggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHTTP_BindTwiceFails(t *testing.T) {
	rec, err := recorder.New(nil, t.TempDir())
	require.NoError(t, err)

	l := NewHTTP(":0")
	require.NoError(t, l.Bind(rec))
	assert.ErrorIs(t, l.Bind(rec), ErrAlreadyBound)
}

func TestHTTP_StartBeforeSetupIsInvalidSequence(t *testing.T) {
	stub := devicetest.New("microphone", 0, nil)
	srv, rec := newBoundServer(t, stub)

	status, body := post(t, srv, "/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, body.Success)
	assert.Equal(t, "invalid_sequence", body.Code)

	// The malformed trigger order must not mutate recorder state.
	assert.Equal(t, recorder.StateUnconfigured, rec.State())
	assert.Zero(t, stub.StartCalls())
}

func TestHTTP_StopBeforeStartIsInvalidSequence(t *testing.T) {
	srv, _ := newBoundServer(t, devicetest.New("microphone", 0, nil))

	status, body := post(t, srv, "/stop", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_sequence", body.Code)
}

func TestHTTP_FullTriggerSequence(t *testing.T) {
	mic := devicetest.New("microphone", 0, map[string]any{"samplerate": 44100})
	cam := devicetest.New("depth_camera", 0, map[string]any{"serial_number": "123"})
	srv, rec := newBoundServer(t, mic, cam)

	status, body := post(t, srv, "/setup", url.Values{"name": {"trial 7"}})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	require.NotNil(t, body.Session)
	assert.Equal(t, "trial_7", body.Session.Name)

	status, body = post(t, srv, "/start", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	assert.Equal(t, recorder.StateRecording, rec.State())

	status, body = post(t, srv, "/stop", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	require.NotNil(t, body.Manifest)
	assert.Len(t, body.Manifest.Devices, 2)
	assert.Equal(t, recorder.StateFinished, rec.State())
}

func TestHTTP_RepeatedSetupIsIdempotent(t *testing.T) {
	stub := devicetest.New("microphone", 0, nil)
	srv, _ := newBoundServer(t, stub)

	status, first := post(t, srv, "/setup", url.Values{"name": {"take"}})
	require.Equal(t, http.StatusOK, status)

	status, second := post(t, srv, "/setup", url.Values{"name": {"take"}})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, second.Success)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, 1, stub.ConfigureCalls())
}

func TestHTTP_RepeatedStartIsAlreadyRecording(t *testing.T) {
	srv, _ := newBoundServer(t, devicetest.New("microphone", 0, nil))

	_, _ = post(t, srv, "/setup", nil)
	status, _ := post(t, srv, "/start", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, srv, "/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_recording", body.Code)

	_, _ = post(t, srv, "/stop", nil)
}

func TestHTTP_SetupFailureReportsFailedDevices(t *testing.T) {
	bad := devicetest.New("microphone", 0, nil)
	bad.ConfigureErr = &device.ConfigurationError{Device: "microphone0", Reason: "unsupported sample rate"}
	srv, rec := newBoundServer(t, bad)

	status, body := post(t, srv, "/setup", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "setup_failed", body.Code)
	assert.Equal(t, []string{"microphone0"}, body.FailedDevices)
	assert.Equal(t, recorder.StateUnconfigured, rec.State())
}

func TestHTTP_PartialStartIsSuccessWithWarning(t *testing.T) {
	failing := devicetest.New("microphone", 0, nil)
	failing.StartErr = errors.New("device busy")
	surviving := devicetest.New("depth_camera", 0, nil)
	srv, rec := newBoundServer(t, failing, surviving)

	_, _ = post(t, srv, "/setup", nil)
	status, body := post(t, srv, "/start", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "partial_start", body.Code)
	assert.Equal(t, []string{"microphone0"}, body.FailedDevices)
	assert.Equal(t, recorder.StateRecording, rec.State())

	_, _ = post(t, srv, "/stop", nil)
}

func TestHTTP_StatusSucceedsWhileRecording(t *testing.T) {
	slow := devicetest.New("microphone", 0, nil)
	slow.StartDelay = 150 * time.Millisecond
	srv, _ := newBoundServer(t, slow)

	_, _ = post(t, srv, "/setup", nil)

	startDone := make(chan struct{})
	go func() {
		defer close(startDone)
		_, _ = post(t, srv, "/start", nil)
	}()

	time.Sleep(20 * time.Millisecond)

	client := &http.Client{Timeout: 100 * time.Millisecond}
	resp, err := client.Get(srv.URL + "/status")
	require.NoError(t, err, "status query must not block behind in-flight start")
	defer resp.Body.Close()

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(recorder.StateRecording), body.State)
	require.Len(t, body.Devices, 1)

	<-startDone
	_, _ = post(t, srv, "/stop", nil)
}

func TestHTTP_MetricsEndpoint(t *testing.T) {
	srv, _ := newBoundServer(t, devicetest.New("microphone", 0, nil))

	_, _ = post(t, srv, "/setup", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "multicorder_trigger_events_total")
}

func TestHTTP_MethodGuards(t *testing.T) {
	srv, _ := newBoundServer(t, devicetest.New("microphone", 0, nil))

	resp, err := http.Get(srv.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
