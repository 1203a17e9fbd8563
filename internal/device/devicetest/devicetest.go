// Package devicetest provides a scriptable device implementation for
// exercising recorder and listener behavior without hardware.
package devicetest

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sensorforge/multicorder/internal/device"
)

// Stub is a device whose configure/start/stop outcomes and latencies are
// scripted by the test.
type Stub struct {
	device.Base

	ConfigureErr error
	StartErr     error
	StopErr      error
	StartDelay   time.Duration
	StopDelay    time.Duration

	configureCalls atomic.Int32
	startCalls     atomic.Int32
	stopCalls      atomic.Int32
}

// New creates a stub device of the given kind and index.
func New(kind string, index int, params map[string]any) *Stub {
	return &Stub{Base: device.NewBase(kind, index, params)}
}

func (s *Stub) Configure() error {
	s.configureCalls.Add(1)
	if s.ConfigureErr != nil {
		return s.ConfigureErr
	}
	return nil
}

func (s *Stub) Start(dir string) error {
	s.startCalls.Add(1)
	if err := s.Starting(); err != nil {
		return err
	}
	if s.StartDelay > 0 {
		time.Sleep(s.StartDelay)
	}
	if s.StartErr != nil {
		s.Fail(s.StartErr)
		return &device.StartError{Device: s.ID(), Err: s.StartErr}
	}
	s.SetOutputFile(filepath.Join(dir, s.ID()+".dat"))
	s.ConfirmStarted()
	return nil
}

func (s *Stub) Stop() error {
	s.stopCalls.Add(1)
	if s.StopDelay > 0 {
		time.Sleep(s.StopDelay)
	}
	state, _ := s.Status()
	if state == device.StateRunning && s.StopErr != nil {
		s.ConfirmStopped(s.StopErr)
		return &device.StopError{Device: s.ID(), Err: s.StopErr}
	}
	s.ConfirmStopped(nil)
	return nil
}

// ConfigureCalls reports how many times Configure ran.
func (s *Stub) ConfigureCalls() int { return int(s.configureCalls.Load()) }

// StartCalls reports how many times Start ran.
func (s *Stub) StartCalls() int { return int(s.startCalls.Load()) }

// StopCalls reports how many times Stop ran.
func (s *Stub) StopCalls() int { return int(s.stopCalls.Load()) }
