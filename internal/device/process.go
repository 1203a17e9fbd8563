package device

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// StopTimeout bounds how long a capture process gets to flush after SIGINT
// before it is killed.
const StopTimeout = 5 * time.Second

// StopProcess interrupts a capture process and waits for it to exit. The
// process is expected to flush its output on SIGINT; if it does not exit
// within StopTimeout it is killed. Exits caused by the interrupt or kill
// signal count as a clean stop.
func StopProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	slog.Debug("Interrupting capture process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt capture process, killing", "error", err)
		cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ProcessState != nil {
				state := exitErr.ProcessState.String()
				if state == "signal: interrupt" || state == "signal: killed" || exitErr.ExitCode() == 255 {
					slog.Debug("Capture process exited after signal", "state", state)
					return nil
				}
			}
			return fmt.Errorf("capture process failed: %w", err)
		}
		return nil

	case <-time.After(StopTimeout):
		slog.Warn("Capture process did not exit within timeout, force killing")
		cmd.Process.Kill()
		<-done
		return nil
	}
}

// DrainOutput logs a capture process stream line by line until it closes.
func DrainOutput(pipe io.ReadCloser, deviceID, stream string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		slog.Debug("Capture output", "device", deviceID, "stream", stream, "line", scanner.Text())
	}
	pipe.Close()
}
