package recorder

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensorforge/multicorder/internal/device"
)

const manifestFileName = "manifest.yaml"

// Device status values recorded in the manifest.
const (
	DeviceStatusSuccess = "success"
	DeviceStatusPartial = "partial"
	DeviceStatusFailed  = "failed"
)

// Manifest is the durable record of what actually happened during a session,
// including partial failures, so post-hoc analysis can decide which devices'
// data is trustworthy.
type Manifest struct {
	Session SessionRecord  `yaml:"session" json:"session"`
	Devices []DeviceRecord `yaml:"devices" json:"devices"`
}

// SessionRecord carries the recorder-level timing bounds: the recorder's own
// call times plus the earliest confirmed device start and latest confirmed
// device stop.
type SessionRecord struct {
	ID               string     `yaml:"id" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	Dir              string     `yaml:"dir" json:"dir"`
	CreatedAt        time.Time  `yaml:"created_at" json:"created_at"`
	StartRequested   time.Time  `yaml:"start_requested" json:"start_requested"`
	StopCompleted    time.Time  `yaml:"stop_completed" json:"stop_completed"`
	FirstDeviceStart *time.Time `yaml:"first_device_start,omitempty" json:"first_device_start,omitempty"`
	LastDeviceStop   *time.Time `yaml:"last_device_stop,omitempty" json:"last_device_stop,omitempty"`
}

// DeviceRecord is one device's entry in the manifest.
type DeviceRecord struct {
	device.Description `yaml:",inline" json:"description"`
	Status             string `yaml:"status" json:"status"`
}

// Write persists the manifest as YAML.
func (m *Manifest) Write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// buildManifest assembles the manifest from the devices' descriptions and
// the per-device start/stop results. Callers hold opMu.
func (r *Recorder) buildManifest(sess *Session) *Manifest {
	r.mu.RLock()
	startErrs := r.startErrs
	stopErrs := r.stopErrs
	callStart := r.callStart
	callStop := r.callStop
	r.mu.RUnlock()

	m := &Manifest{
		Session: SessionRecord{
			ID:             sess.ID,
			Name:           sess.Name,
			Dir:            sess.Dir,
			CreatedAt:      sess.CreatedAt,
			StartRequested: callStart,
			StopCompleted:  callStop,
		},
	}

	var firstStart, lastStop *time.Time
	for _, d := range r.devices {
		desc := d.Describe()

		status := DeviceStatusSuccess
		if _, ok := startErrs[desc.ID]; ok {
			status = DeviceStatusFailed
		} else if _, ok := stopErrs[desc.ID]; ok {
			status = DeviceStatusPartial
		}

		if desc.StartedAt != nil && (firstStart == nil || desc.StartedAt.Before(*firstStart)) {
			firstStart = desc.StartedAt
		}
		if desc.StoppedAt != nil && (lastStop == nil || desc.StoppedAt.After(*lastStop)) {
			lastStop = desc.StoppedAt
		}

		m.Devices = append(m.Devices, DeviceRecord{Description: desc, Status: status})
	}

	m.Session.FirstDeviceStart = firstStart
	m.Session.LastDeviceStop = lastStop
	return m
}
