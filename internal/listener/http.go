package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensorforge/multicorder/internal/recorder"
)

// HTTP serves recorder trigger events over the local network: POST /setup,
// /start and /stop each map onto exactly one recorder operation, GET /status
// answers at any time, GET /metrics exposes Prometheus counters.
type HTTP struct {
	addr string

	mu  sync.Mutex
	rec *recorder.Recorder
}

// NewHTTP creates an HTTP listener on the given address.
func NewHTTP(addr string) *HTTP {
	return &HTTP{addr: addr}
}

// Bind associates exactly one recorder with this listener.
func (h *HTTP) Bind(rec *recorder.Recorder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rec != nil {
		return ErrAlreadyBound
	}
	h.rec = rec
	return nil
}

func (h *HTTP) recorder() *recorder.Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec
}

// Handler builds the route table. Exposed separately from Serve so tests can
// drive it through httptest.
func (h *HTTP) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/setup", h.handleSetup)
	mux.HandleFunc("/start", h.handleStart)
	mux.HandleFunc("/stop", h.handleStop)
	mux.HandleFunc("/status", h.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve accepts trigger events until the context is cancelled.
func (h *HTTP) Serve(ctx context.Context) error {
	if h.recorder() == nil {
		return ErrNotBound
	}

	srv := &http.Server{Addr: h.addr, Handler: h.Handler()}

	slog.Info("Trigger listener ready",
		"addr", h.addr,
		"local_url", fmt.Sprintf("http://%s:%s", localIP(), portOf(h.addr)))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("Trigger listener shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (h *HTTP) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, triggerResponse{Success: false, Error: "method not allowed"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, triggerResponse{Success: false, Error: "failed to parse form"})
		return
	}

	rec := h.recorder()
	if rec == nil {
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Error: ErrNotBound.Error()})
		return
	}

	name := r.FormValue("name")
	slog.Debug("Setup trigger received", "name", name, "remote", r.RemoteAddr)

	resp := doSetup(rec, name)
	observe("setup", resp)
	writeJSON(w, httpStatusFor(resp), resp)
}

func (h *HTTP) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, triggerResponse{Success: false, Error: "method not allowed"})
		return
	}
	rec := h.recorder()
	if rec == nil {
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Error: ErrNotBound.Error()})
		return
	}
	slog.Debug("Start trigger received", "remote", r.RemoteAddr)

	resp := doStart(rec)
	observe("start", resp)
	writeJSON(w, httpStatusFor(resp), resp)
}

func (h *HTTP) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, triggerResponse{Success: false, Error: "method not allowed"})
		return
	}
	rec := h.recorder()
	if rec == nil {
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Error: ErrNotBound.Error()})
		return
	}
	slog.Debug("Stop trigger received", "remote", r.RemoteAddr)

	resp := doStop(rec)
	observe("stop", resp)
	writeJSON(w, httpStatusFor(resp), resp)
}

func (h *HTTP) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, triggerResponse{Success: false, Error: "method not allowed"})
		return
	}
	rec := h.recorder()
	if rec == nil {
		writeJSON(w, http.StatusInternalServerError, triggerResponse{Success: false, Error: ErrNotBound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusOf(rec))
}

// httpStatusFor maps a trigger result onto a response code: sequence
// violations are the caller's fault, device failures are not.
func httpStatusFor(resp triggerResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Code {
	case codeInvalidSequence, codeAlreadyRecording:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// localIP returns the outbound interface address, for the startup log line.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
